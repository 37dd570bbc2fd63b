package agent

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/partpilot/partpilot/internal/models"
)

const checkoutURL = "https://www.partselect.com/cart"

var quantityPattern = regexp.MustCompile(`\d+`)

const returnsPolicyText = `PartSelect offers a 365-day return policy on most parts. Returns are accepted for:
- Unused parts in original packaging
- Parts that don't fit (with proof of purchase)
- Defective parts

To initiate a return:
1. Contact customer service within 365 days
2. Provide order number and reason
3. Receive return authorization
4. Ship part back with tracking

Refunds are processed within 5-7 business days after receiving the return.`

func (e *Engine) handleReturnsPolicy() models.Reply {
	reply := models.NewReply(returnsPolicyText, models.IntentReturnsPolicy, models.SourceRules)
	reply.QuickReplies = []string{"Start return", "Contact support"}
	return reply
}

// handleCartOperation covers the conversational cart flows: quantity updates
// ("make that two"), removal, view and checkout. The cart lives in the
// context; without a cart ID every operation reports an empty cart.
func (e *Engine) handleCartOperation(operation models.Intent, utterance string, entities models.Entities, cctx *models.Context) models.Reply {
	if cctx.CartID == "" {
		reply := models.NewReply(
			"Your cart is empty. Would you like to find some parts?",
			operation, models.SourceRules)
		reply.QuickReplies = []string{"Find parts", "Troubleshoot issue"}
		return reply
	}

	switch operation {
	case models.IntentCartUpdate:
		return e.updateCartQuantity(utterance, cctx)
	case models.IntentCartRemove:
		return e.removeCartItem(entities, cctx)
	case models.IntentCartCheckout:
		return e.checkoutCart(cctx)
	default:
		return e.viewCart(cctx)
	}
}

func (e *Engine) updateCartQuantity(utterance string, cctx *models.Context) models.Reply {
	match := quantityPattern.FindString(utterance)
	if match == "" {
		reply := models.NewReply(
			"How many would you like? Please specify a quantity.",
			models.IntentCartUpdate, models.SourceRules)
		reply.QuickReplies = []string{"1", "2", "3", "View cart"}
		return reply
	}
	quantity, err := strconv.Atoi(match)
	if err != nil {
		quantity = 1
	}

	// "Make that two" targets the last part the user added; fall back to the
	// newest cart row when the context never tracked one.
	target := cctx.LastAddedPart
	if target == "" {
		item, err := e.store.LatestCartItem(cctx.CartID)
		if err != nil {
			slog.Error("Engine.updateCartQuantity: latest item read failed", "error", err, "cartID", cctx.CartID)
		}
		if item != nil {
			target = item.PartNumber
		}
	}
	if target == "" {
		reply := models.NewReply(
			"Which item would you like to update?",
			models.IntentCartUpdate, models.SourceRules)
		reply.QuickReplies = []string{"View cart"}
		return reply
	}

	if err := e.store.UpdateCartQuantity(cctx.CartID, target, quantity); err != nil {
		slog.Error("Engine.updateCartQuantity: update failed", "error", err, "cartID", cctx.CartID, "partNumber", target)
		reply := models.NewReply(
			"Sorry, I couldn't update your cart. Please try again.",
			models.IntentCartUpdate, models.SourceRules)
		reply.QuickReplies = []string{"View cart"}
		return reply
	}

	reply := models.NewReply(
		fmt.Sprintf("Updated %s quantity to %d.", target, quantity),
		models.IntentCartUpdate, models.SourceDB)
	reply.QuickReplies = []string{"View cart", "Checkout", "Find more parts"}
	return reply
}

func (e *Engine) removeCartItem(entities models.Entities, cctx *models.Context) models.Reply {
	partNumber := entities.PartNumber
	if partNumber == "" {
		partNumber = cctx.LastAddedPart
	}

	if partNumber == "" {
		items, err := e.store.GetCartItems(cctx.CartID)
		if err != nil {
			slog.Error("Engine.removeCartItem: cart read failed", "error", err, "cartID", cctx.CartID)
		}
		if len(items) == 0 {
			reply := models.NewReply("Your cart is empty.", models.IntentCartRemove, models.SourceDB)
			reply.QuickReplies = []string{"Find parts"}
			return reply
		}
		reply := models.NewReply(
			"Which item would you like to remove?",
			models.IntentCartRemove, models.SourceDB)
		for i, item := range items {
			if i >= 3 {
				break
			}
			label := item.PartNumber
			if part, err := e.store.GetPartByNumber(item.PartNumber); err == nil && part != nil {
				label = fmt.Sprintf("%s (%s)", item.PartNumber, part.Name)
			}
			reply.QuickReplies = append(reply.QuickReplies, label)
		}
		reply.QuickReplies = append(reply.QuickReplies, "View full cart")
		return reply
	}

	if err := e.store.RemoveCartItem(cctx.CartID, partNumber); err != nil {
		slog.Error("Engine.removeCartItem: removal failed", "error", err, "cartID", cctx.CartID, "partNumber", partNumber)
		reply := models.NewReply(
			"Sorry, I couldn't remove that item. Please try again.",
			models.IntentCartRemove, models.SourceRules)
		reply.QuickReplies = []string{"View cart"}
		return reply
	}

	reply := models.NewReply(
		fmt.Sprintf("Removed %s from your cart.", partNumber),
		models.IntentCartRemove, models.SourceDB)
	reply.QuickReplies = []string{"View cart", "Find more parts"}
	return reply
}

func (e *Engine) viewCart(cctx *models.Context) models.Reply {
	items, err := e.store.GetCartItems(cctx.CartID)
	if err != nil {
		slog.Error("Engine.viewCart: cart read failed", "error", err, "cartID", cctx.CartID)
		reply := models.NewReply(
			"Sorry, I couldn't load your cart. Please try again.",
			models.IntentCartView, models.SourceRules)
		reply.QuickReplies = []string{"Try again"}
		return reply
	}
	if len(items) == 0 {
		reply := models.NewReply("Your cart is empty.", models.IntentCartView, models.SourceDB)
		reply.QuickReplies = []string{"Find parts", "Troubleshoot issue"}
		return reply
	}

	// Subtotal covers priced items only; unpriced lines say so rather than
	// silently count as zero.
	var lines []string
	subtotalCents := 0
	for _, item := range items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		name := item.PartNumber
		var priceCents *int
		if part, err := e.store.GetPartByNumber(item.PartNumber); err == nil && part != nil {
			name = part.Name
			priceCents = part.PriceCents
		}
		if priceCents != nil {
			lineCents := *priceCents * qty
			subtotalCents += lineCents
			lines = append(lines, fmt.Sprintf("• %s (x%d) - $%.2f", name, qty, float64(lineCents)/100))
		} else {
			lines = append(lines, fmt.Sprintf("• %s (x%d) - Price unavailable", name, qty))
		}
	}

	reply := models.NewReply(
		fmt.Sprintf("Your Cart (%s):\n\n%s\n\nSubtotal: $%.2f",
			itemCountLabel(len(items)), strings.Join(lines, "\n"), float64(subtotalCents)/100),
		models.IntentCartView, models.SourceDB)
	reply.QuickReplies = []string{"Checkout", "Find more parts", "Remove an item"}
	return reply
}

func (e *Engine) checkoutCart(cctx *models.Context) models.Reply {
	items, err := e.store.GetCartItems(cctx.CartID)
	if err != nil {
		slog.Error("Engine.checkoutCart: cart read failed", "error", err, "cartID", cctx.CartID)
		reply := models.NewReply(
			"Sorry, I couldn't load your cart. Please try again.",
			models.IntentCartCheckout, models.SourceRules)
		reply.QuickReplies = []string{"Try again"}
		return reply
	}
	if len(items) == 0 {
		reply := models.NewReply(
			"Your cart is empty. Add some parts first!",
			models.IntentCartCheckout, models.SourceDB)
		reply.QuickReplies = []string{"Find parts"}
		return reply
	}

	totalCents := 0
	for _, item := range items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		if part, err := e.store.GetPartByNumber(item.PartNumber); err == nil && part != nil && part.PriceCents != nil {
			totalCents += *part.PriceCents * qty
		}
	}

	reply := models.NewReply(
		fmt.Sprintf("Ready to checkout: %s, total $%.2f. To complete your order, visit PartSelect.com. I can help you with installation guides or compatibility checks first!",
			itemCountLabel(len(items)), float64(totalCents)/100),
		models.IntentCartCheckout, models.SourceDB)
	reply.Cards = append(reply.Cards, models.NewCheckoutCard(models.CheckoutCardData{
		Items:       len(items),
		TotalCents:  totalCents,
		CheckoutURL: checkoutURL,
	}))
	reply.QuickReplies = []string{"View installation help", "Check compatibility", "Continue shopping"}
	return reply
}

func itemCountLabel(n int) string {
	if n == 1 {
		return "1 item"
	}
	return fmt.Sprintf("%d items", n)
}
