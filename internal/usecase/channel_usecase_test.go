package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/domain/entity"
	ws "parley/internal/infrastructure/websocket"
	"parley/pkg/errors"
)

func TestCreateDirectChannel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.channelUC.CreateChannel(ctx, "u1", CreateChannelInput{
		Type:      entity.ChannelTypeDirect,
		MemberIDs: []string{"u2"},
	})
	require.NoError(t, err)

	assert.Equal(t, entity.ChannelTypeDirect, view.Type)
	assert.Len(t, view.Members, 2)
	assert.Equal(t, "Bob", view.Name, "direct channel is titled after the other participant")
	assert.Equal(t, 0, view.UnreadCount)

	created := f.bus.named(ws.EventChannelCreated)
	require.Len(t, created, 2)
	targets := []string{created[0].Target, created[1].Target}
	assert.ElementsMatch(t, []string{"u1", "u2"}, targets)
}

func TestCreateDirectChannelDeduplicates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.channelUC.CreateChannel(ctx, "u1", CreateChannelInput{
		Type:      entity.ChannelTypeDirect,
		MemberIDs: []string{"u2"},
	})
	require.NoError(t, err)
	f.bus.reset()

	// Same pair, either direction, lands on the same channel with no
	// further events.
	second, err := f.channelUC.CreateChannel(ctx, "u2", CreateChannelInput{
		Type:      entity.ChannelTypeDirect,
		MemberIDs: []string{"u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Empty(t, f.bus.named(ws.EventChannelCreated))
}

func TestCreateChannelValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.channelUC.CreateChannel(ctx, "u1", CreateChannelInput{
		Type:      entity.ChannelTypeDirect,
		MemberIDs: []string{"u2", "u3"},
	})
	assert.True(t, errors.Is(err, "VALIDATION_ERROR"))

	_, err = f.channelUC.CreateChannel(ctx, "u1", CreateChannelInput{
		Type:      entity.ChannelTypeGroup,
		MemberIDs: []string{"u2"},
	})
	assert.True(t, errors.Is(err, "VALIDATION_ERROR"), "group without a name is rejected")

	_, err = f.channelUC.CreateChannel(ctx, "u1", CreateChannelInput{
		Type:      entity.ChannelTypeDirect,
		MemberIDs: []string{"ghost"},
	})
	assert.True(t, errors.Is(err, "VALIDATION_ERROR"), "unknown member ids are invalid input")

	_, err = f.channelUC.CreateChannel(ctx, "u1", CreateChannelInput{
		Type:      entity.ChannelTypeGroup,
		Name:      "   ",
		MemberIDs: []string{"u2"},
	})
	assert.True(t, errors.Is(err, "VALIDATION_ERROR"), "a whitespace-only group name is rejected")
}

func TestCreateGroupTrimsName(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.channelUC.CreateChannel(ctx, "u1", CreateChannelInput{
		Type:      entity.ChannelTypeGroup,
		Name:      "  Plans  ",
		MemberIDs: []string{"u2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Plans", view.Name)
}

func TestReactivateDirectChannel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.channelUC.CreateChannel(ctx, "u1", CreateChannelInput{
		Type:      entity.ChannelTypeDirect,
		MemberIDs: []string{"u2"},
	})
	require.NoError(t, err)

	_, err = f.messageUC.Send(ctx, "u1", SendMessageInput{ChannelID: view.ID, Text: "hello"})
	require.NoError(t, err)

	require.NoError(t, f.channelUC.DeleteForUser(ctx, "u1", view.ID))

	// Re-creating the pair reactivates the same channel for u1 with a
	// clean slate; u2's history is untouched.
	reactivated, err := f.channelUC.CreateChannel(ctx, "u1", CreateChannelInput{
		Type:      entity.ChannelTypeDirect,
		MemberIDs: []string{"u2"},
	})
	require.NoError(t, err)
	assert.Equal(t, view.ID, reactivated.ID)

	ch, err := f.channels.GetByID(ctx, view.ID)
	require.NoError(t, err)
	assert.False(t, ch.DeletedFor("u1"))

	mine, err := f.messageUC.Fetch(ctx, "u1", view.ID)
	require.NoError(t, err)
	assert.Empty(t, mine, "old messages never come back for the rejoining user")

	theirs, err := f.messageUC.Fetch(ctx, "u2", view.ID)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)
}

func TestSoftDeletePurgesWhenAllMembersDelete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.channelUC.CreateChannel(ctx, "u1", CreateChannelInput{
		Type:      entity.ChannelTypeDirect,
		MemberIDs: []string{"u2"},
	})
	require.NoError(t, err)

	msg, err := f.messageUC.Send(ctx, "u1", SendMessageInput{ChannelID: view.ID, Text: "bye"})
	require.NoError(t, err)
	require.NoError(t, f.receiptUC.MarkSeen(ctx, "u2", msg.ID))

	require.NoError(t, f.channelUC.DeleteForUser(ctx, "u1", view.ID))

	// First deletion is soft: channel still exists.
	_, err = f.channels.GetByID(ctx, view.ID)
	require.NoError(t, err)

	require.NoError(t, f.channelUC.DeleteForUser(ctx, "u2", view.ID))

	// Last member out purges the channel, its messages and receipts.
	_, err = f.channels.GetByID(ctx, view.ID)
	assert.True(t, errors.Is(err, "NOT_FOUND"))
	_, err = f.messages.GetByID(ctx, msg.ID)
	assert.True(t, errors.Is(err, "NOT_FOUND"))
	assert.Zero(t, f.receipts.count())
}

func TestSoftDeleteEmitsDeletionToRequesterOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.channelUC.CreateChannel(ctx, "u1", CreateChannelInput{
		Type:      entity.ChannelTypeDirect,
		MemberIDs: []string{"u2"},
	})
	require.NoError(t, err)
	f.bus.reset()

	require.NoError(t, f.channelUC.DeleteForUser(ctx, "u1", view.ID))

	deleted := f.bus.named(ws.EventChannelDeleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, "u1", deleted[0].Target)

	updated := f.bus.named(ws.EventChannelUpdated)
	require.NotEmpty(t, updated)
	for _, e := range updated {
		assert.Equal(t, "u2", e.Target)
	}
}

func TestGroupUpdateMembershipPostsSystemMessages(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.channelUC.CreateChannel(ctx, "u1", CreateChannelInput{
		Type:      entity.ChannelTypeGroup,
		Name:      "Project",
		MemberIDs: []string{"u2"},
	})
	require.NoError(t, err)
	f.bus.reset()

	updated, err := f.channelUC.Update(ctx, "u1", view.ID, UpdateChannelInput{
		AddMemberIDs: []string{"u3"},
	})
	require.NoError(t, err)
	assert.Len(t, updated.Members, 3)

	ch, err := f.channels.GetByID(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, ch.UnreadFor("u2"), "the join announcement counts as unread for bystanders")
	assert.Equal(t, 0, ch.UnreadFor("u1"), "the acting user does not count their own change")

	msgs, err := f.messageUC.Fetch(ctx, "u3", view.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Author.IsSystem())
	assert.Equal(t, "Carol joined the group", msgs[0].Text)

	removedView, err := f.channelUC.Update(ctx, "u1", view.ID, UpdateChannelInput{
		RemoveMemberIDs: []string{"u3"},
	})
	require.NoError(t, err)
	assert.Len(t, removedView.Members, 2)

	var gotDeleted bool
	for _, e := range f.bus.named(ws.EventChannelDeleted) {
		if e.Target == "u3" {
			gotDeleted = true
		}
	}
	assert.True(t, gotDeleted, "a removed member is told the channel is gone for them")
}

func TestUpdateRejectsDirectChannels(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.channelUC.CreateChannel(ctx, "u1", CreateChannelInput{
		Type:      entity.ChannelTypeDirect,
		MemberIDs: []string{"u2"},
	})
	require.NoError(t, err)

	name := "Renamed"
	_, err = f.channelUC.Update(ctx, "u1", view.ID, UpdateChannelInput{Name: &name})
	assert.True(t, errors.Is(err, "VALIDATION_ERROR"))
}

func TestUpdateByNonMemberLooksLikeMissingChannel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.channelUC.CreateChannel(ctx, "u1", CreateChannelInput{
		Type:      entity.ChannelTypeGroup,
		Name:      "Plans",
		MemberIDs: []string{"u1", "u2"},
	})
	require.NoError(t, err)

	name := "Hijacked"
	_, err = f.channelUC.Update(ctx, "u3", view.ID, UpdateChannelInput{Name: &name})
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}

func TestLeavingGroupPostsSystemMessage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.channelUC.CreateChannel(ctx, "u1", CreateChannelInput{
		Type:      entity.ChannelTypeGroup,
		Name:      "Project",
		MemberIDs: []string{"u2", "u3"},
	})
	require.NoError(t, err)

	require.NoError(t, f.channelUC.DeleteForUser(ctx, "u3", view.ID))

	msgs, err := f.messageUC.Fetch(ctx, "u1", view.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Carol left the group", msgs[0].Text)
	assert.True(t, msgs[0].Author.IsSystem())
}

func TestInviteFlow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.channelUC.CreateChannel(ctx, "u1", CreateChannelInput{
		Type:      entity.ChannelTypeGroup,
		Name:      "Project",
		MemberIDs: []string{"u2"},
	})
	require.NoError(t, err)

	link, err := f.channelUC.InviteLink(ctx, "u1", view.ID)
	require.NoError(t, err)
	assert.Contains(t, link, "http://localhost:8080/invite/")

	ch, err := f.channels.GetByID(ctx, view.ID)
	require.NoError(t, err)

	joined, err := f.channelUC.AcceptInvite(ctx, "u3", ch.InviteToken)
	require.NoError(t, err)
	assert.Len(t, joined.Members, 3)

	msgs, err := f.messageUC.Fetch(ctx, "u1", view.ID)
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	assert.Equal(t, "Carol joined the group", msgs[len(msgs)-1].Text)

	// Regenerating invalidates the old link.
	fresh, err := f.channelUC.RegenerateInvite(ctx, "u1", view.ID)
	require.NoError(t, err)
	assert.NotEqual(t, link, fresh)

	_, err = f.channelUC.AcceptInvite(ctx, "u3", ch.InviteToken)
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}

func TestInviteLinkRejectedForDirectChannels(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.channelUC.CreateChannel(ctx, "u1", CreateChannelInput{
		Type:      entity.ChannelTypeDirect,
		MemberIDs: []string{"u2"},
	})
	require.NoError(t, err)

	_, err = f.channelUC.InviteLink(ctx, "u1", view.ID)
	assert.True(t, errors.Is(err, "VALIDATION_ERROR"))
}

func TestListAnnotatesPerViewerSummary(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.channelUC.CreateChannel(ctx, "u1", CreateChannelInput{
		Type:      entity.ChannelTypeDirect,
		MemberIDs: []string{"u2"},
	})
	require.NoError(t, err)

	_, err = f.messageUC.Send(ctx, "u1", SendMessageInput{ChannelID: view.ID, Text: "first"})
	require.NoError(t, err)

	require.NoError(t, f.channelUC.DeleteForUser(ctx, "u1", view.ID))

	// u1 deleted the channel and sees nothing; u2 still sees it with the
	// old message as summary.
	mine, err := f.channelUC.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, mine)

	theirs, err := f.channelUC.List(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, "first", theirs[0].LastMessage)

	// A new message makes the channel reappear for u1, summarized by the
	// only message they can see.
	_, err = f.messageUC.Send(ctx, "u2", SendMessageInput{ChannelID: view.ID, Text: "second"})
	require.NoError(t, err)

	mine, err = f.channelUC.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "second", mine[0].LastMessage)
}

func TestEnsureMember(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.channelUC.CreateChannel(ctx, "u1", CreateChannelInput{
		Type:      entity.ChannelTypeDirect,
		MemberIDs: []string{"u2"},
	})
	require.NoError(t, err)

	_, err = f.channelUC.EnsureMember(ctx, view.ID, "u3")
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	_, err = f.channelUC.EnsureMember(ctx, view.ID, "u1")
	assert.NoError(t, err)
}
