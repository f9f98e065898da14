package flow

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/winbingo/internal/wallet"
)

const (
	msgBusy             = "⏳ Still working on your previous message, please wait."
	msgInternal         = "⚠️ Something went wrong. Please try again later."
	msgAlreadyProcessed = "Already processed"
	msgUnknownAction    = "Unknown action"
	msgExpired          = "This action has expired. Please start again from the menu."
	msgUnexpectedFile   = "I was not expecting a file. Use the menu below."
	msgIdleHint         = "Use the menu below or send /help."
	msgCancelled        = "❎ Cancelled."
	msgNothingToCancel  = "Nothing to cancel."
	msgRegisterFirst    = "📱 Please register first by sharing your contact."
	msgUnknownCommand   = "Unknown command /%s. Send /help for the list."
	msgMenu             = "🎯 Main menu"
	msgWelcome          = "👋 Welcome to Win Bingo!\nShare your contact to register and receive your bonus."
	msgWelcomeBack      = "👋 Welcome back, %s!"
	msgRules            = "📖 Rules\n" +
		"• Register by sharing your contact.\n" +
		"• Deposits are credited once an admin approves your receipt.\n" +
		"• Withdrawals are held from your balance right away and paid after review.\n" +
		"• Rejected withdrawals are refunded.\n" +
		"• Send /cancel at any point to stop the current action."

	msgBalance       = "💰 Your balance: %s"
	msgYourBalance   = "Your balance: %s"
	msgHistoryEmpty  = "No transactions yet."
	msgHistoryHeader = "🧾 Recent transactions"
	msgSupportNone   = "Support is not configured yet."
	msgSupport       = "📞 Contact support: %s"

	msgOwnContact        = "Please share your own contact."
	msgAlreadyRegistered = "✅ You are already registered."
	msgRegistered        = "✅ Registration complete."
	msgSignupBonus       = "\n🎁 Sign-up bonus: %s"

	msgWithdrawTooPoor   = "The minimum withdrawal is %s. Your balance is %s."
	msgChooseMethod      = "🏦 Choose a withdrawal method:"
	msgAskPhone          = "📱 Send the %s phone number to pay out to."
	msgPhoneCancelHint   = "Press Cancel to stop the withdrawal."
	msgBadPhone          = "❌ That does not look like a phone number. Try again."
	msgAskName           = "👤 Send the account holder's full name."
	msgBadName           = "❌ Please send a name of at most 64 characters."
	msgAskAmount         = "💵 How much do you want to withdraw? Minimum %s, available %s."
	msgBelowMinimum      = "❌ The minimum withdrawal is %s."
	msgOverBalance       = "❌ You only have %s."
	msgConfirmWithdraw   = "Please confirm the withdrawal:\nMethod: %s\nPhone: %s\nName: %s\nAmount: %s"
	msgRetryConfirm      = "Your request may already be filed. Check your balance, then press Retry if needed."
	msgAlreadySubmitted  = "Request #%d is already submitted."
	msgWithdrawSubmitted = "✅ Withdrawal request #%d for %s submitted. The amount is held until an admin reviews it."

	msgTransferUsage     = "Usage: /transfer <amount> @username"
	msgAskRecipient      = "💸 Send the recipient's @username or user id."
	msgAskTransferAmount = "How much do you want to send to %s? Available %s."
	msgTransferSent      = "✅ Sent %s to %s. Your balance: %s"
	msgTransferReceived  = "💸 You received %s from %s. Your balance: %s"

	msgChooseDepositMethod = "💵 Choose how you paid:"
	msgDepositAccount      = "Send your deposit via %s to:\n%s"
	msgDepositNoAccount    = "Deposits via %s: ask %s for the account details."
	msgAskDepositAmount    = "How much did you deposit?"
	msgAskReceipt          = "📎 Send a photo or file of the receipt for %s."
	msgDepositSubmitted    = "✅ Deposit request #%d for %s submitted. Your balance is credited once it is approved."

	msgAdminOnly        = "Admins only"
	msgNoPending        = "No pending requests."
	msgAlreadyHandled   = "Request #%d was already handled"
	msgReviewDone       = "Request #%d (%s, %s) %s."
	msgDepositApproved  = "✅ Deposit #%d approved. %s was added to your balance."
	msgDepositRejected  = "❌ Deposit #%d was rejected. Contact %s if you think this is a mistake."
	msgWithdrawApproved = "✅ Withdrawal #%d approved. %s is on its way to your %s account."
	msgWithdrawRejected = "❌ Withdrawal #%d was rejected. %s was returned to your balance."

	btnShareContact = "📱 Share contact"
	btnSharePhone   = "📱 Use my number"
)

// money renders d with thousands grouping and the currency code.
func (c *Controller) money(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	minor := wallet.ToMinor(d.Abs())
	return sign + c.printer.Sprintf("%d", minor/100) + fmt.Sprintf(".%02d %s", minor%100, c.cfg.Currency)
}

func (c *Controller) signedMoney(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + c.money(d)
	}
	return c.money(d)
}
