package services

import (
	"fmt"
	"strings"

	"github.com/onlinebus/booking-backend/pkg/mailer"
)

const ticketSubject = "Your Bus Ticket Confirmation"

// ticketMessage builds the confirmation email carrying the ticket PDF
func ticketMessage(to, brand, currency string, t Ticket, pdf []byte) mailer.Message {
	first := t.Bookings[0]

	var passengers strings.Builder
	for _, b := range t.Bookings {
		fmt.Fprintf(&passengers, "- %s (Age: %d, Mobile: %s, Seat: %s %s)\n",
			orNA(b.PassengerName), b.PassengerAge, orNA(b.PassengerMobile), b.SeatNumber, orNA(b.SeatType))
	}

	name := first.PassengerName
	if name == "" {
		name = "Valued Passenger"
	}

	body := fmt.Sprintf(`Dear %s,

Thank you for booking your journey with %s.

Travel Date: %s
Route: %s to %s
Operator: %s
Passenger Count: %d
Amount Paid: %s %.2f

Passenger Details:
%s
Your e-ticket is attached as a PDF. Please carry a digital or printed copy while boarding;
the QR code on the ticket can be scanned at the boarding point.

Wishing you a safe and comfortable journey!
%s Team
`,
		name, brand, first.TravelDate.String(), orNA(first.FromStop), orNA(first.ToStop),
		t.operator(), len(t.Bookings), currency, t.Total(), passengers.String(), brand)

	return mailer.Message{
		To:      to,
		Subject: ticketSubject,
		Body:    body,
		Attachments: []mailer.Attachment{{
			Filename:    ticketFilename(first.BusID, first.TravelDate.String()),
			ContentType: "application/pdf",
			Data:        pdf,
		}},
	}
}

func ticketFilename(busID, date string) string {
	return fmt.Sprintf("ticket-%s-%s.pdf", busID, date)
}
