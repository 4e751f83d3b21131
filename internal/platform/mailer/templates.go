package mailer

import (
	"fmt"
	"html"
	"time"

	"github.com/diagnosis/guesthouse-bookings/internal/domain"
)

func ChallengeCode(to, code string, ttl time.Duration) Message {
	minutes := int(ttl.Minutes())
	return Message{
		To:      to,
		Subject: "Your booking verification code",
		Text:    fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, minutes),
		HTML: fmt.Sprintf(`<p>Your verification code is <b>%s</b>.</p><p>It expires in %d minutes.</p>`,
			html.EscapeString(code), minutes),
	}
}

func AdminNewBooking(to string, b *domain.Booking) Message {
	text := fmt.Sprintf("New booking request %s\nGuest: %s <%s> %s\nRoom: %s\nStay: %s to %s\nGuests: %d\nRequests: %s",
		b.ID, b.Name, b.Email, b.Phone, b.RoomType,
		b.CheckIn.Format("2006-01-02"), b.CheckOut.Format("2006-01-02"), b.Guests, b.SpecialRequests)
	return Message{
		To:      to,
		Subject: fmt.Sprintf("New booking request: %s (%s)", b.RoomType, b.CheckIn.Format("2006-01-02")),
		Text:    text,
		HTML:    "<pre>" + html.EscapeString(text) + "</pre>",
	}
}

func PaymentLink(b *domain.Booking, url string) Message {
	return Message{
		To:      b.Email,
		ToName:  b.Name,
		Subject: "Your booking is approved",
		Text: fmt.Sprintf("Hi %s, your stay in %s from %s to %s is approved. Pay here: %s",
			b.Name, b.RoomType, b.CheckIn.Format("2006-01-02"), b.CheckOut.Format("2006-01-02"), url),
		HTML: fmt.Sprintf(`<p>Hi %s, your stay in %s is approved.</p><p><a href="%s">Pay for your booking</a></p>`,
			html.EscapeString(b.Name), html.EscapeString(b.RoomType), html.EscapeString(url)),
	}
}

func PaymentReceived(b *domain.Booking) Message {
	return Message{
		To:      b.Email,
		ToName:  b.Name,
		Subject: "Payment received",
		Text:    fmt.Sprintf("Thank you %s, we received your payment for booking %s.", b.Name, b.ID),
	}
}

func ContactReceived(to string, m *domain.ContactMessage) Message {
	text := fmt.Sprintf("From: %s <%s> %s\nSubject: %s\n\n%s", m.Name, m.Email, m.Phone, m.Subject, m.Message)
	return Message{To: to, Subject: "Contact form: " + m.Subject, Text: text}
}
