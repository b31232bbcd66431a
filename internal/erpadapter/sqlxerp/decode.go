package sqlxerp

import (
	"github.com/shopspring/decimal"

	"github.com/einvoice-platform/pipeline/internal/erpadapter"
)

func decodePO(row poRow, lineRows []poLineRow) (*erpadapter.PurchaseOrder, error) {
	totalNet, err := decimal.NewFromString(row.TotalNet)
	if err != nil {
		return nil, err
	}

	lines := make([]erpadapter.PurchaseOrderLine, 0, len(lineRows))
	for _, lr := range lineRows {
		ordered, err := decimal.NewFromString(lr.QuantityOrdered)
		if err != nil {
			return nil, err
		}
		invoiced, err := decimal.NewFromString(lr.QuantityInvoiced)
		if err != nil {
			return nil, err
		}
		lines = append(lines, erpadapter.PurchaseOrderLine{
			ItemIdentifier:   lr.ItemIdentifier,
			QuantityOrdered:  ordered,
			QuantityInvoiced: invoiced,
		})
	}

	return &erpadapter.PurchaseOrder{
		PONumber:         row.PONumber,
		VendorID:         row.VendorID,
		TotalNet:         totalNet,
		OpenForInvoicing: row.OpenForInvoicing,
		Lines:            lines,
	}, nil
}
