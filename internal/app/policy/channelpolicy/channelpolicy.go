// Package channelpolicy holds the authorization rules for channels.
//
// Authorization rules:
//   - A user can access an active channel of its own agency when the channel
//     is public (and not direct) or the user holds a membership.
//   - Owners and admins can add anyone from the channel's agency. Anyone can
//     add themselves to a public channel.
//   - Owners can remove any non-owner. Admins can remove plain members.
//     Anyone can leave, except the owner, who can never be removed.
//   - Only the owner can change roles, and never its own.
//   - A message can be deleted by its sender or by a channel owner/admin.
//
// The functions are pure; callers load the channel and memberships first.
// A nil membership means "not a member".
package channelpolicy

import (
	"github.com/dalemusser/stratachat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func isManager(m *models.Membership) bool {
	return m != nil && (m.Role == models.MemberRoleOwner || m.Role == models.MemberRoleAdmin)
}

// SameAgency reports whether user belongs to the channel's agency.
func SameAgency(u models.User, ch models.Channel) bool {
	return u.AgencyID == ch.AgencyID
}

// CanAccess reports whether u may read and post in ch.
func CanAccess(u models.User, ch models.Channel, membership *models.Membership) bool {
	if !ch.Active || !SameAgency(u, ch) {
		return false
	}
	return ch.IsPublic() || membership != nil
}

// CanAddMember reports whether actor may add targetID to ch.
func CanAddMember(ch models.Channel, actorID primitive.ObjectID, actor *models.Membership, targetID primitive.ObjectID) bool {
	if ch.IsDirect {
		return false
	}
	if isManager(actor) {
		return true
	}
	return actorID == targetID && ch.IsPublic()
}

// CanRemoveMember reports whether actor may remove target. Direct channels
// always keep both participants.
func CanRemoveMember(ch models.Channel, actorID primitive.ObjectID, actor *models.Membership, target models.Membership) bool {
	if ch.IsDirect || target.Role == models.MemberRoleOwner {
		return false
	}
	if actorID == target.UserID {
		return true
	}
	if actor == nil {
		return false
	}
	switch actor.Role {
	case models.MemberRoleOwner:
		return true
	case models.MemberRoleAdmin:
		return target.Role == models.MemberRoleMember
	}
	return false
}

// CanSetRole reports whether actor may give target a new role.
func CanSetRole(actor *models.Membership, target models.Membership, role string) bool {
	if actor == nil || actor.Role != models.MemberRoleOwner {
		return false
	}
	if target.Role == models.MemberRoleOwner {
		return false
	}
	return role == models.MemberRoleAdmin || role == models.MemberRoleMember
}

// CanDeleteMessage reports whether actor may soft delete msg.
func CanDeleteMessage(actorID primitive.ObjectID, actor *models.Membership, msg models.Message) bool {
	return msg.SenderID == actorID || isManager(actor)
}
