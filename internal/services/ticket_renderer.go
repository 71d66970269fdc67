package services

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/phpdave11/gofpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/onlinebus/booking-backend/internal/models"
	"github.com/onlinebus/booking-backend/pkg/fare"
)

const notAvailable = "N/A"

// Ticket is everything printed on one e-ticket
type Ticket struct {
	Bus      *models.Bus
	Schedule *models.TripSchedule // nil when the bus has no schedule on the date
	Bookings []models.Booking
}

// Total is the sum of all fares on the ticket
func (t *Ticket) Total() float64 {
	total := 0.0
	for _, b := range t.Bookings {
		total += b.Fare
	}
	return fare.Round2(total)
}

// Route prefers the bus's end points and falls back to the booked stops
func (t *Ticket) Route() string {
	first := t.Bookings[0]
	source := orNA(first.FromStop)
	destination := orNA(first.ToStop)
	if t.Bus != nil && t.Bus.Source != "" {
		source = t.Bus.Source
	}
	if t.Bus != nil && t.Bus.Destination != "" {
		destination = t.Bus.Destination
	}
	return source + " to " + destination
}

func (t *Ticket) operator() string {
	if t.Bus == nil {
		return notAvailable
	}
	return orNA(t.Bus.OperatorName)
}

// QRContent is the text encoded in the ticket's QR code
func (t *Ticket) QRContent(currency string) string {
	first := t.Bookings[0]
	return fmt.Sprintf("Name: %s | Email: %s | Bus: %s | Route: %s | Date: %s | Paid: %s %.2f",
		orNA(first.PassengerName), orNA(first.CustomerEmail), t.operator(), t.Route(),
		first.TravelDate.String(), currency, t.Total())
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

// TicketRenderer turns a ticket into a printable document
type TicketRenderer interface {
	Render(t Ticket) ([]byte, error)
}

// PDFTicketRenderer renders A4 tickets with gofpdf
type PDFTicketRenderer struct {
	brand    string
	currency string
}

// NewPDFTicketRenderer creates a renderer; brand is printed as the title
func NewPDFTicketRenderer(brand, currency string) *PDFTicketRenderer {
	return &PDFTicketRenderer{brand: brand, currency: currency}
}

// Render implements TicketRenderer
func (r *PDFTicketRenderer) Render(t Ticket) ([]byte, error) {
	if len(t.Bookings) == 0 {
		return nil, errors.New("no bookings to render")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("E-Ticket", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(r.brand+" - Bus Ticket"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	first := t.Bookings[0]
	departure, arrival := notAvailable, notAvailable
	if t.Schedule != nil {
		departure, arrival = orNA(t.Schedule.DepartureTime), orNA(t.Schedule.ArrivalTime)
	}

	pdf.SetFont("Helvetica", "", 11)
	for _, row := range [][2]string{
		{"Operator", t.operator()},
		{"Route", t.Route()},
		{"Departure", departure},
		{"Arrival", arrival},
		{"Travel Date", first.TravelDate.String()},
		{"Booked On", first.CreatedAt.Format("2006-01-02")},
	} {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(40, 7, row[0]+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 7, tr(row[1]), "", 1, "L", false, 0, "")
	}

	pdf.Ln(4)
	r.table(pdf, tr, "Passenger Info",
		[]string{"Name", "Email", "Age", "Mobile"},
		[]float64{50, 70, 20, 50},
		func(add func(...string)) {
			for _, b := range t.Bookings {
				age := notAvailable
				if b.PassengerAge > 0 {
					age = strconv.Itoa(b.PassengerAge)
				}
				add(orNA(b.PassengerName), orNA(b.CustomerEmail), age, orNA(b.PassengerMobile))
			}
		})

	pdf.Ln(4)
	widths := []float64{30, 30, 40, 90}
	r.table(pdf, tr, "Booked Seats",
		[]string{"Seat No.", "Type", "Fare (" + r.currency + ")", "From - To"},
		widths,
		func(add func(...string)) {
			for _, b := range t.Bookings {
				add(b.SeatNumber, orNA(b.SeatType), fmt.Sprintf("%.2f", b.Fare), orNA(b.FromStop)+" - "+orNA(b.ToStop))
			}
		})
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(widths[0]+widths[1], 7, "Total", "1", 0, "L", false, 0, "")
	pdf.CellFormat(widths[2], 7, fmt.Sprintf("%.2f", t.Total()), "1", 0, "L", false, 0, "")
	pdf.CellFormat(widths[3], 7, "", "1", 1, "L", false, 0, "")

	png, err := qrcode.Encode(t.QRContent(r.currency), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("ticket-qr", opts, bytes.NewReader(png))

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Scan QR for ticket info", "", 1, "C", false, 0, "")
	pageWidth, _ := pdf.GetPageSize()
	pdf.ImageOptions("ticket-qr", (pageWidth-40)/2, pdf.GetY()+2, 40, 40, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render ticket: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFTicketRenderer) table(pdf *gofpdf.Fpdf, tr func(string) string, title string, headers []string, widths []float64, rows func(add func(...string))) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(220, 220, 220)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	rows(func(cells ...string) {
		for i, c := range cells {
			pdf.CellFormat(widths[i], 7, tr(c), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	})
}
