package userbot

import (
	"context"
	"strconv"

	"github.com/gotd/td/tg"

	"github.com/edgard/giftwatch/internal/feed"
)

// PurchaseGift attempts one purchase of the gift, delivered to the
// user's channel. The flow is the two-step stars payment protocol:
// request the payment form for a star-gift invoice, verify the quoted
// price, then submit the form.
//
// Any failure, including a form that quotes a different price than the
// feed listed, aborts before submission and returns false. There is no
// retry and no idempotency token; the caller only retries via the next
// feed cycle, by which time a sold-out gift no longer matches.
func (c *Client) PurchaseGift(ctx context.Context, channelID, accessHash string, gift feed.Gift) bool {
	if err := c.waitReady(ctx); err != nil {
		return false
	}

	log := c.logger.With("gift_id", gift.ID, "price", gift.Price, "channel_id", channelID)

	giftID, err := strconv.ParseInt(gift.ID, 10, 64)
	if err != nil {
		log.WarnContext(ctx, "Feed gift ID is not numeric, skipping", "error", err)
		return false
	}

	peer, err := inputPeer(channelID, accessHash)
	if err != nil {
		log.WarnContext(ctx, "Bad channel credentials, skipping purchase", "error", err)
		return false
	}

	invoice := &tg.InputInvoiceStarGift{
		Peer:     peer,
		GiftID:   giftID,
		HideName: true,
	}

	form, err := c.api.PaymentsGetPaymentForm(ctx, &tg.PaymentsGetPaymentFormRequest{
		Invoice: invoice,
	})
	if err != nil {
		log.WarnContext(ctx, "Failed to get payment form", "error", err)
		return false
	}

	formID, inv, ok := extractForm(form)
	if !ok {
		log.WarnContext(ctx, "Unexpected payment form type", "type", form.TypeName())
		return false
	}

	if !quotesExactPrice(inv, gift.Price) {
		log.WarnContext(ctx, "Payment form price does not match feed listing, aborting",
			"quoted_lines", len(inv.Prices))
		return false
	}

	if _, err := c.api.PaymentsSendStarsForm(ctx, &tg.PaymentsSendStarsFormRequest{
		FormID:  formID,
		Invoice: invoice,
	}); err != nil {
		log.WarnContext(ctx, "Failed to submit stars form", "error", err)
		return false
	}

	log.InfoContext(ctx, "Gift purchase submitted")
	return true
}

// extractForm pulls the form ID and invoice out of whichever payment
// form variant the server returned.
func extractForm(form tg.PaymentsPaymentFormClass) (int64, tg.Invoice, bool) {
	switch f := form.(type) {
	case *tg.PaymentsPaymentForm:
		return f.FormID, f.Invoice, true
	case *tg.PaymentsPaymentFormStars:
		return f.FormID, f.Invoice, true
	case *tg.PaymentsPaymentFormStarGift:
		return f.FormID, f.Invoice, true
	default:
		return 0, tg.Invoice{}, false
	}
}

// quotesExactPrice reports whether the invoice carries exactly one price
// line equal to the expected amount. Anything else means the listing
// changed between the feed and the form, and the purchase must not go
// through.
func quotesExactPrice(inv tg.Invoice, want int64) bool {
	return len(inv.Prices) == 1 && inv.Prices[0].Amount == want
}
