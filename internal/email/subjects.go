package email

const (
	subjectWelcome             = "Thanks for your interest in %s"
	subjectConsultation        = "Schedule your free design consultation"
	subjectFollowUp            = "Still thinking about your project?"
	subjectOffer               = "A special offer on your granite project"
	subjectEstimateFmt         = "Your estimate %s from %s"
	subjectEstimateReminderFmt = "Reminder: estimate %s is waiting for you"
	subjectContractFmt         = "Your contract %s from %s"
	subjectContractSignedFmt   = "Contract %s is signed - next steps from %s"
)
