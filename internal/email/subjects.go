package email

const (
	subjectTenantReply   = "Reply from your property manager"
	subjectOwnerAlertFmt = "Tenant update for %s"
	subjectEscalationFmt = "Action needed: conversation about %s"
)
