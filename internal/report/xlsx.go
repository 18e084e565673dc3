// Package report exports the certificate vault as a spreadsheet.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/adamscao/certvault/internal/models"
)

// SheetName is the worksheet holding the vault
const SheetName = "Certificates"

// ContentType is the MIME type of the exported workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// VaultHeader lists the exported columns in order
var VaultHeader = []string{
	"Certificate ID",
	"Recipient Name",
	"Recipient Email",
	"Program",
	"Type",
	"Completion Date",
	"Issue Date",
	"Status",
	"Issuer Role",
	"Issued By",
	"Hash",
	"Cloud URL",
	"Issued At (UTC)",
}

var columnWidths = []float64{28, 24, 28, 30, 20, 16, 18, 10, 12, 16, 68, 60, 20}

// GenerateVaultExport writes records to an xlsx workbook, one row each, in
// the order given
func GenerateVaultExport(records []*models.CertificateRecord) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#667EEA"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]any, len(VaultHeader))
	for i, h := range VaultHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(VaultHeader))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to convert column number: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		row := []any{
			rec.CertificateID,
			rec.RecipientName,
			rec.RecipientEmail,
			rec.ProgramName,
			string(rec.Type),
			rec.CompletionDate,
			rec.IssueDate,
			rec.Status,
			string(rec.IssuerRole),
			rec.IssuedBy,
			rec.Hash,
			rec.CloudURL,
			time.UnixMilli(rec.Timestamp).UTC().Format("2006-01-02 15:04:05"),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	// Freeze the header row
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	return buf.Bytes(), nil
}
