package entities

// Role is the explicit authority ladder. Comparisons go through Rank so no
// code ever branches on string ordering.
type Role string

const (
	RoleContributor     Role = "contributor"
	RoleReviewer        Role = "reviewer"
	RoleCommitteeMember Role = "committee_member"
	RoleAdmin           Role = "admin"
	RoleSuperAdmin      Role = "super_admin"
)

var roleRanks = map[Role]int{
	RoleContributor:     1,
	RoleReviewer:        2,
	RoleCommitteeMember: 3,
	RoleAdmin:           4,
	RoleSuperAdmin:      5,
}

func (r Role) Rank() int {
	return roleRanks[r]
}

func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// AtLeast reports whether r carries at least the authority of other.
func (r Role) AtLeast(other Role) bool {
	return r.Rank() >= other.Rank()
}
