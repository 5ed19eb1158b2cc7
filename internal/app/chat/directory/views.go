package directory

import (
	"context"
	"time"

	"github.com/dalemusser/stratachat/internal/domain/models"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChannelView is a channel as shown to one user. DisplayName is the channel
// name, or the other participant's full name for direct channels.
type ChannelView struct {
	models.Channel
	DisplayName string `json:"displayName"`
	Member      bool   `json:"member"`
}

// MemberView is one row of a channel's member list.
type MemberView struct {
	User     models.UserSummary `json:"user"`
	Role     string             `json:"role"`
	Muted    bool               `json:"muted"`
	JoinedAt time.Time          `json:"joinedAt"`
}

// ChannelDetail is a channel with its members.
type ChannelDetail struct {
	Channel ChannelView  `json:"channel"`
	Members []MemberView `json:"members"`
}

// ListChannelsForUser returns the active channels of the user's agency that
// are public or that the user belongs to, ordered by name.
func (s *Service) ListChannelsForUser(ctx context.Context, userID primitive.ObjectID) ([]ChannelView, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	memberOf, err := s.Memberships.ChannelIDsForUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	chs, err := s.Channels.ListVisible(ctx, u.AgencyID, memberOf)
	if err != nil {
		return nil, err
	}

	names, err := s.directNames(ctx, u.ID, lo.Filter(chs, func(c models.Channel, _ int) bool { return c.IsDirect }))
	if err != nil {
		return nil, err
	}
	joined := lo.SliceToMap(memberOf, func(id primitive.ObjectID) (primitive.ObjectID, struct{}) {
		return id, struct{}{}
	})

	return lo.Map(chs, func(c models.Channel, _ int) ChannelView {
		_, member := joined[c.ID]
		return view(c, names, member)
	}), nil
}

// GetChannelDetail returns the channel and its members. Requires access.
func (s *Service) GetChannelDetail(ctx context.Context, userID, channelID primitive.ObjectID) (ChannelDetail, error) {
	acc, err := s.Authorize(ctx, userID, channelID)
	if err != nil {
		return ChannelDetail{}, err
	}
	ms, err := s.Memberships.ListByChannel(ctx, acc.Channel.ID)
	if err != nil {
		return ChannelDetail{}, err
	}
	summaries, err := s.Users.GetSummaries(ctx, lo.Map(ms, func(m models.Membership, _ int) primitive.ObjectID { return m.UserID }))
	if err != nil {
		return ChannelDetail{}, err
	}

	names := map[primitive.ObjectID]string{}
	if acc.Channel.IsDirect {
		if other, ok := lo.Find(ms, func(m models.Membership) bool { return m.UserID != userID }); ok {
			names[acc.Channel.ID] = summaries[other.UserID].FullName
		}
	}

	return ChannelDetail{
		Channel: view(acc.Channel, names, acc.Membership != nil),
		Members: lo.Map(ms, func(m models.Membership, _ int) MemberView {
			sum, ok := summaries[m.UserID]
			if !ok {
				sum = models.UserSummary{ID: m.UserID}
			}
			return MemberView{User: sum, Role: m.Role, Muted: m.Muted, JoinedAt: m.JoinedAt}
		}),
	}, nil
}

// directNames maps each direct channel id to the full name of the
// participant who is not userID.
func (s *Service) directNames(ctx context.Context, userID primitive.ObjectID, direct []models.Channel) (map[primitive.ObjectID]string, error) {
	out := make(map[primitive.ObjectID]string, len(direct))
	if len(direct) == 0 {
		return out, nil
	}
	ms, err := s.Memberships.ListByChannels(ctx, lo.Map(direct, func(c models.Channel, _ int) primitive.ObjectID { return c.ID }))
	if err != nil {
		return nil, err
	}
	others := lo.Filter(ms, func(m models.Membership, _ int) bool { return m.UserID != userID })
	summaries, err := s.Users.GetSummaries(ctx, lo.Uniq(lo.Map(others, func(m models.Membership, _ int) primitive.ObjectID { return m.UserID })))
	if err != nil {
		return nil, err
	}
	for _, m := range others {
		out[m.ChannelID] = summaries[m.UserID].FullName
	}
	return out, nil
}

func view(c models.Channel, names map[primitive.ObjectID]string, member bool) ChannelView {
	name := c.Name
	if n, ok := names[c.ID]; ok && n != "" {
		name = n
	}
	return ChannelView{Channel: c, DisplayName: name, Member: member}
}
