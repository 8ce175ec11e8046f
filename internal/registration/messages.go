package registration

import (
	"fmt"
	"strings"

	"github.com/oss377/maneBot/core/telegram/format"
	"github.com/oss377/maneBot/internal/registrant"
)

// Reply keyboard labels. Inbound text equal to a label triggers its action.
const (
	BtnRegister        = "Register / መዝግብ"
	BtnJoinGroup       = "Join Group / ቡድኑን ይቀላቀሉ"
	BtnHelp            = "Help"
	BtnProfile         = "My Profile"
	BtnContact         = "Contact Us"
	BtnFeelingBefore   = "Pre-retreat feeling"
	BtnFeelingAfter    = "Post-retreat feeling"
	BtnChangeLanguage  = "Change Language"
	BtnContinue        = "Continue Registration"
	BtnRegisterAnother = "Register another"
	BtnCancel          = "Cancel"
	BtnBack            = "Back"
)

// Inline action verbs.
const (
	ActEditName       = "edit_name"
	ActEditEmail      = "edit_email"
	ActEditPhone      = "edit_phone"
	ActEditLocation   = "edit_location"
	ActFinishPayments = "finish_payments"
	ActContinue       = "continue_registration"
	ActRemindUser     = "remind_user"
	ActRemindFeeling  = "remind_feeling"
)

const (
	langPrompt        = "Please select your language / እባክዎን ቋንቋ ይምረጡ: / Mee afaan filadhu:"
	langInvalid       = "Please select a valid language / እባክዎን ትክክለኛ ቋንቋ ይምረጡ / Mee afaan sirrii filadhu:"
	clickStart        = "Please click /start to begin."
	emailPlaceholder  = "example@email.com"
	phonePlaceholder  = "0911223344"
	reminderHeader    = "🔔 *Reminder*\n\n"
	captionApproved   = "\n\n---\n✅ Approved by admin."
	captionDeclined   = "\n\n---\n❌ Declined by admin."
	answerApproved    = "✅ User approved!"
	answerDeclined    = "❌ User declined."
	telegramTextLimit = 4096
)

// msgKey names an entry of the text catalog.
type msgKey int

const (
	mWelcome msgKey = iota
	mWelcomeBack
	mWelcomeFinishPayment
	mContinuePrompt
	mHowItWorks
	mMainMenu
	mHelp
	mAskName
	mInvalidName
	mAskEmail
	mInvalidEmail
	mAskLocation
	mInvalidLocation
	mAskPhone
	mInvalidPhone
	mAskPayment
	mAccountNumber
	mProcessingPayment
	mCanRegisterOthers
	mFriendUploadedPayment
	mAlreadyRegistered
	mNotRegistered
	mAskOtherName
	mAskOtherEmail
	mAskOtherLocation
	mAskOtherPhone
	mAskOtherPayment
	mOtherPaymentReceived
	mInviteReady
	mPaymentSuccess
	mPaymentDeclined
	mJoinGroupSuccess
	mJoinGroupNotApproved
	mWaitForApproval
	mFriendApproved
	mOtherDeclined
	mShareGroupLink
	mFinishPaymentPrompt
	mAllPaymentsDone
	mNoPendingSteps
	mCancelled
	mIdleNudge
	mAskFeelingBefore
	mAskFeelingAfter
	mRemindFeelingBefore
	mRemindFeelingAfter
	mFeelingSaved
	mEmptyText
	mProfileTitle
	mUpdateSuccess
	mEditNamePrompt
	mEditEmailPrompt
	mEditPhonePrompt
	mEditLocationPrompt
	mClaimInvalid
	mClaimConflict
	mClaimSelf
	mClaimWelcome
	mClaimOwnerNotice
	mSubMissing
	mDataDeleted
	mSubReminder
	mSendPhoto
	mContact
)

var english = map[msgKey]string{
	mWelcome:               "Welcome to the retreat registration bot! Use the menu below to register, check your profile or join the group.",
	mWelcomeBack:           "Welcome back! Your details are already registered. Use the menu below to continue.",
	mWelcomeFinishPayment:  "Welcome back! Your registration is almost done. Please upload your payment screenshot to finish.",
	mContinuePrompt:        "You have an unfinished registration. Tap the button below to continue where you left off.",
	mHowItWorks:            "How registration works:\n1. Tap Register and answer a few questions.\n2. Pay using the account details we send you.\n3. Upload a screenshot of the payment.\n4. Once an admin approves it, you will get the group link.\n\nYou can also register friends and family with \"Register another\".",
	mMainMenu:              "Main menu:",
	mHelp:                  "Use *Register* to sign up, *My Profile* to review or edit your details and *Join Group* once your payment is approved. You can send /start at any time to return here.",
	mAskName:               "Please enter your full name (first and last name):",
	mInvalidName:           "That doesn't look like a full name. Please enter at least your first and last name using letters only.",
	mAskEmail:              "Please enter your email address:",
	mInvalidEmail:          "That email address is not valid. Please try again, or pick a domain below to complete it.",
	mAskLocation:           "Where are you based? Please enter your city or location:",
	mInvalidLocation:       "Please enter your location as text.",
	mAskPhone:              "Please enter your phone number (format 09XXXXXXXX):",
	mInvalidPhone:          "Invalid phone number. It must start with 09 and have 10 digits, e.g. 0911223344.",
	mAskPayment:            "Please upload a screenshot of your payment:",
	mAccountNumber:         "Please make your payment using the following details:\n\n%s",
	mProcessingPayment:     "✅ Thank you! Your payment screenshot was received and is awaiting approval. We will notify you once it is reviewed.",
	mCanRegisterOthers:     "You can also register friends or family members. Tap \"Register another\" from the menu.",
	mFriendUploadedPayment: "Your invitee *%s* has uploaded their payment screenshot.",
	mAlreadyRegistered:     "You are already registered. Would you like to register someone else?",
	mNotRegistered:         "You have not registered yet. Tap Register to begin.",
	mAskOtherName:          "Please enter the full name of the person you are registering:",
	mAskOtherEmail:         "Please enter their email address:",
	mAskOtherLocation:      "Please enter their city or location:",
	mAskOtherPhone:         "Please enter their phone number (format 09XXXXXXXX):",
	mAskOtherPayment:       "Please upload the payment screenshot for %s:",
	mOtherPaymentReceived:  "✅ Payment screenshot for *%s* received and awaiting approval.",
	mInviteReady:           "✅ Registration details for *%s* are saved!\n\nPlease forward this special invitation link to them so they can join the bot:\n\n%s",
	mPaymentSuccess:        "🎉 Your payment has been approved! Welcome to the retreat.",
	mPaymentDeclined:       "❌ Your payment could not be verified and was declined. Please upload a correct payment screenshot.",
	mJoinGroupSuccess:      "You can now join the retreat group using the button below.",
	mJoinGroupNotApproved:  "You can join the group once you have registered and your payment has been approved.",
	mWaitForApproval:       "⏳ Your payment is awaiting approval. You will receive the group link once it is approved.",
	mFriendApproved:        "✅ The payment for *%s* has been approved!",
	mOtherDeclined:         "⚠️ The payment for *%s* was declined. Please upload a correct payment screenshot on their behalf.",
	mShareGroupLink:        "You can now share the group link with *%s*!",
	mFinishPaymentPrompt:   "Your registration is not complete yet. Please upload your payment screenshot to finish it.",
	mAllPaymentsDone:       "✅ All payments are up to date!",
	mNoPendingSteps:        "You have no pending registration steps.",
	mCancelled:             "Cancelled.",
	mIdleNudge:             "Are you stuck? Tap the button below to see the question again.",
	mAskFeelingBefore:      "How are you feeling before the retreat? Share a few words:",
	mAskFeelingAfter:       "How do you feel after the retreat? Share a few words:",
	mRemindFeelingBefore:   "🔔 We would love to hear how you are feeling before the retreat. Please share a few words:",
	mRemindFeelingAfter:    "🔔 We would love to hear how you feel after the retreat. Please share a few words:",
	mFeelingSaved:          "🙏 Thank you for sharing!",
	mEmptyText:             "Please send a text answer.",
	mProfileTitle:          "*Your Profile*",
	mUpdateSuccess:         "Profile updated.",
	mEditNamePrompt:        "Please enter your new full name:",
	mEditEmailPrompt:       "Please enter your new email address:",
	mEditPhonePrompt:       "Please enter your new phone number (format 09XXXXXXXX):",
	mEditLocationPrompt:    "Please enter your new location:",
	mClaimInvalid:          "This invitation link is no longer valid or has already been used.",
	mClaimConflict:         "This invitation has already been claimed by another Telegram account.",
	mClaimSelf:             "You cannot claim an invitation you created yourself.",
	mClaimWelcome:          "Welcome, %s! You were invited by %s.",
	mClaimOwnerNotice:      "✅ *%s* has joined the bot using your invitation link.",
	mSubMissing:            "An error occurred. Could not find the registration to apply payment to. Please contact support.",
	mDataDeleted:           "Your registration data has been deleted by an administrator.",
	mSubReminder:           "You still need to upload the payment screenshot for *%s* to complete their registration.",
	mSendPhoto:             "Please send the payment screenshot as a photo.",
	mContact:               "For any questions please reach out to the retreat organisers through this chat.",
}

// catalogs holds the bundled texts per language. Missing languages and keys
// fall back to English.
var catalogs = map[registrant.Lang]map[msgKey]string{
	registrant.LangEnglish: english,
}

func catalog(lang registrant.Lang, key msgKey, args ...any) string {
	text, ok := catalogs[lang.OrDefault()][key]
	if !ok {
		text = english[key]
	}
	if len(args) > 0 {
		return fmt.Sprintf(text, args...)
	}
	return text
}

func t(r *registrant.Registrant, key msgKey, args ...any) string {
	var lang registrant.Lang
	if r != nil {
		lang = r.Lang
	}
	return catalog(lang, key, args...)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func subStatusLabel(s registrant.SubRegistration) string {
	switch s.Status() {
	case registrant.StatusApproved:
		return "✅ Approved & Joined"
	case registrant.StatusPendingApproval:
		return "⏳ Pending Approval"
	case registrant.StatusPendingPayment:
		return "⚠️ Awaiting Payment"
	}
	return "❓ Unknown"
}

func selfStatusLabel(r *registrant.Registrant) string {
	switch r.Status() {
	case registrant.StatusApproved:
		return "✅ Approved"
	case registrant.StatusPendingApproval:
		return "⏳ Pending Approval"
	case registrant.StatusPendingPayment:
		return "⚠️ Awaiting Payment"
	}
	return "📝 Incomplete"
}

// profileDetails renders the registrant's profile and their sub-registrations.
func profileDetails(r *registrant.Registrant) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Name:* %s\n*Email:* %s\n*Phone:* %s\n*Location:* %s\n*Status:* %s",
		format.MD(orDash(r.Profile.Name)),
		format.MD(orDash(r.Profile.Email)),
		format.MD(orDash(r.Profile.Phone)),
		format.MD(orDash(r.Profile.Location)),
		selfStatusLabel(r),
	)
	named := 0
	for _, o := range r.Others {
		if o.Name == "" {
			continue
		}
		if named == 0 {
			b.WriteString("\n\n*People you registered:*")
		}
		named++
		fmt.Fprintf(&b, "\n%d. %s: %s", named, format.MD(o.Name), subStatusLabel(o))
	}
	return b.String()
}

func adminCaption(r *registrant.Registrant) string {
	return fmt.Sprintf("User: %s (%d)\nEmail: %s\nPhone: %s\nLocation: %s",
		r.Profile.Name, r.ID, orDash(r.Profile.Email), orDash(r.Profile.Phone), orDash(r.Profile.Location))
}

func adminOtherCaption(r *registrant.Registrant, sub registrant.SubRegistration) string {
	return fmt.Sprintf("New Registration by %s (%d):\n\nNew User Name: %s\nEmail: %s\nPhone: %s\nLocation: %s",
		orDash(r.Profile.Name), r.ID, sub.Name, orDash(sub.Email), orDash(sub.Phone), orDash(sub.Location))
}

// displayName falls back to the identity when no name was collected.
func displayName(r *registrant.Registrant) string {
	if r.Profile.Name != "" {
		return r.Profile.Name
	}
	return fmt.Sprintf("User ID: %d", r.ID)
}
