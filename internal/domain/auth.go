package domain

type Permission string

const (
	PermissionCreateSubmission  Permission = "CREATE_SUBMISSION"
	PermissionViewSubmission    Permission = "VIEW_SUBMISSION"
	PermissionViewOwnSubmission Permission = "VIEW_OWN_SUBMISSION"
	PermissionManageRuntimes    Permission = "MANAGE_RUNTIMES"
)

// Principal is the authenticated caller extracted from a bearer token
type Principal struct {
	UserID      int64
	Permissions []string
}

func (p *Principal) Has(perm Permission) bool {
	if p == nil {
		return false
	}
	for _, granted := range p.Permissions {
		if granted == string(perm) {
			return true
		}
	}
	return false
}

// CanView reports whether the principal owns the submission or may view any submission.
func (p *Principal) CanView(s *Submission) bool {
	if p == nil || s == nil {
		return false
	}
	return s.UserID == p.UserID || p.Has(PermissionViewSubmission)
}
