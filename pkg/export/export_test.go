package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func revenueDataset() Dataset {
	return Dataset{
		Headers: []string{"period", "orders", "revenue"},
		Rows: []map[string]string{
			{"period": "2024-03-01", "orders": "4", "revenue": "38.00"},
			{"period": "2024-03-02", "orders": "1", "revenue": "6.00"},
		},
		Footer: map[string]string{"period": "total", "orders": "5", "revenue": "44.00"},
	}
}

func TestCSVExporterWritesFooterLast(t *testing.T) {
	out, err := NewCSVExporter().Render(revenueDataset())
	require.NoError(t, err)
	assert.Equal(t, "period,orders,revenue\n2024-03-01,4,38.00\n2024-03-02,1,6.00\ntotal,5,44.00\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRendersTable(t *testing.T) {
	out, err := NewPDFExporter().Render(revenueDataset(), "Revenue")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRendersReceipt(t *testing.T) {
	out, err := NewPDFExporter().RenderReceipt(Receipt{
		Title:  "Print Receipt",
		Fields: []Field{{Label: "Token", Value: "TRK-abc"}, {Label: "Total", Value: "12.00"}},
		Footer: "Thank you",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewPDFExporter().RenderReceipt(Receipt{Title: "empty"})
	assert.Error(t, err)
}
