package notify

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// TelegramAPI is the subset of *telego.Bot used here.
type TelegramAPI interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// TelegramNotifier posts a short line to the staff chat for every settled payment.
type TelegramNotifier struct {
	bot    TelegramAPI
	chatID int64
}

func NewTelegramNotifier(bot TelegramAPI, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

func (n *TelegramNotifier) Notify(ctx context.Context, ev Event) error {
	_, err := n.bot.SendMessage(ctx, tu.Message(tu.ID(n.chatID), staffMessage(ev)))
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func staffMessage(ev Event) string {
	amount := ev.Amount.StringFixed(0) + " " + ev.Currency
	where := ""
	if ev.CourtName != "" {
		where = fmt.Sprintf(" | %s %s", ev.CourtName, ev.BookingDate)
	}
	if ev.Kind == PaymentSucceeded {
		return fmt.Sprintf("✅ Thanh toán %s thành công: %s%s", ev.TxnRef, amount, where)
	}
	return fmt.Sprintf("❌ Thanh toán %s thất bại (mã %s): %s%s", ev.TxnRef, ev.ResponseCode, amount, where)
}
