package notify

import (
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/model"
)

func customerSubject(s model.Summary) string {
	return fmt.Sprintf("Booking confirmed: %s (%s)", s.ServiceLabel, s.BookingID)
}

func operatorSubject(s model.Summary) string {
	return fmt.Sprintf("New paid booking %s: %s", s.BookingID, s.ServiceLabel)
}

func customerText(s model.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Namaste %s,\n\n", s.Name)
	fmt.Fprintf(&b, "Your booking for %s is confirmed.\n\n", s.ServiceLabel)
	writeDetails(&b, s)
	b.WriteString("\nOur team will contact you before the ceremony.\n")
	return b.String()
}

func operatorText(s model.Summary) string {
	var b strings.Builder
	b.WriteString("New booking received\n\n")
	fmt.Fprintf(&b, "Name: %s\nPhone: %s\nEmail: %s\n", s.Name, s.Phone, s.Email)
	writeDetails(&b, s)
	return b.String()
}

func writeDetails(b *strings.Builder, s model.Summary) {
	fmt.Fprintf(b, "Booking ID: %s\n", s.BookingID)
	fmt.Fprintf(b, "Service: %s\n", s.ServiceLabel)
	fmt.Fprintf(b, "Date: %s %s\n", s.Date, s.Time)
	fmt.Fprintf(b, "Address: %s\n", s.Address)
	fmt.Fprintf(b, "Amount: Rs. %d\n", s.Amount)
	if s.PaymentID != "" {
		fmt.Fprintf(b, "Payment ID: %s\n", s.PaymentID)
	}
}
