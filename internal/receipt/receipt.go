// Package receipt renders the ticket handed to the customer after checkout,
// as plain text for the terminal and as a narrow PDF for thermal printers.
package receipt

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"

	"pos-backoffice/internal/domain"
)

const (
	dateLayout  = "02/01/2006 15:04"
	separator   = "========================"
	thanks      = "¡Gracias por su compra!"
	nameColumns = 20
)

// Receipt is everything printed on a ticket. Sale.Lines must have their
// products resolved.
type Receipt struct {
	StoreName string
	Cashier   string
	Sale      *domain.Sale
}

// Text renders the ticket as fixed-width text.
func Text(r Receipt) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", strings.ToUpper(r.StoreName))
	fmt.Fprintf(&b, "%s\n", separator)
	fmt.Fprintf(&b, "Venta #%d - %s\n", r.Sale.ID, r.Sale.Timestamp.Format(dateLayout))
	if r.Cashier != "" {
		fmt.Fprintf(&b, "Cajero: %s\n", r.Cashier)
	}
	b.WriteString("\n")

	for i := range r.Sale.Lines {
		line := &r.Sale.Lines[i]
		fmt.Fprintf(&b, "%s %2d x $%6s = $%8s\n",
			padName(productName(line), nameColumns),
			line.Quantity,
			unitPrice(line),
			line.Subtotal().StringFixed(2),
		)
	}

	fmt.Fprintf(&b, "\n%s\n", separator)
	fmt.Fprintf(&b, "TOTAL: $%s\n", r.Sale.Total.StringFixed(2))
	fmt.Fprintf(&b, "%s\n", separator)
	fmt.Fprintf(&b, "\n%s\n", thanks)
	return b.String()
}

// PDF writes the ticket as a 74mm wide PDF to w.
func PDF(w io.Writer, r Receipt) error {
	rows := len(r.Sale.Lines)
	height := 70 + float64(rows)*5

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 74, Ht: height},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 4)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 7, tr(r.StoreName), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, "Ticket de Venta", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(contentW, 5, fmt.Sprintf("Venta #%d", r.Sale.ID), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, r.Sale.Timestamp.Format(dateLayout), "", 1, "L", false, 0, "")
	if r.Cashier != "" {
		pdf.CellFormat(contentW, 4, tr("Cajero: "+r.Cashier), "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	col1 := contentW * 0.52
	col2 := contentW * 0.16
	col3 := contentW * 0.32

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 5, "Producto", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 5, "Cant", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 5, "Subtotal", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for i := range r.Sale.Lines {
		line := &r.Sale.Lines[i]
		pdf.CellFormat(col1, 5, tr(truncate(productName(line), 22)), "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, fmt.Sprintf("x%d", line.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 5, "$"+line.Subtotal().StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(col1+col2, 6, "TOTAL:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 6, "$"+r.Sale.Total.StringFixed(2), "", 1, "R", false, 0, "")

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, tr(thanks), "", 1, "C", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render receipt pdf: %w", err)
	}
	return nil
}

// WritePDF stores the ticket as dir/venta_<id>.pdf and returns the path.
func WritePDF(dir string, r Receipt) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create receipt dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("venta_%d.pdf", r.Sale.ID))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create receipt file: %w", err)
	}
	if err := PDF(f, r); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close receipt file: %w", err)
	}
	return path, nil
}

func productName(line *domain.SaleLine) string {
	if line.Product == nil {
		return fmt.Sprintf("Producto %d", line.ProductID)
	}
	return line.Product.Name
}

func unitPrice(line *domain.SaleLine) string {
	if line.Product == nil {
		return "-"
	}
	return line.Product.Price.StringFixed(2)
}

// padName pads or cuts s to exactly n runes.
func padName(s string, n int) string {
	s = truncate(s, n)
	if pad := n - utf8.RuneCountInString(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
