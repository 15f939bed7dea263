package service

import (
	"context"
	"errors"
	"time"

	"relatim-chat/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ChatDirectory resolves and creates direct chats and builds the per-user
// chat list.
type ChatDirectory struct {
	db  *gorm.DB
	log *logrus.Logger
	now Clock
}

func NewChatDirectory(db *gorm.DB, log *logrus.Logger) *ChatDirectory {
	return &ChatDirectory{db: db, log: log, now: systemClock}
}

type participantRow struct {
	ChatID    uint
	UserID    uint
	Username  string
	Email     string
	AvatarURL *string
	Status    string
	JoinedAt  time.Time
}

func (r participantRow) info() ParticipantInfo {
	return ParticipantInfo{
		ID:        r.UserID,
		Username:  r.Username,
		Email:     r.Email,
		AvatarURL: r.AvatarURL,
		Status:    r.Status,
		JoinedAt:  r.JoinedAt,
	}
}

// ListChats returns every chat userID participates in, most recently active first.
func (s *ChatDirectory) ListChats(ctx context.Context, userID uint) ([]ChatSummary, error) {
	db := s.db.WithContext(ctx)

	var memberships []model.ChatParticipant
	if err := db.Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		return nil, internal("failed to load chats", err)
	}
	if len(memberships) == 0 {
		return []ChatSummary{}, nil
	}

	chatIDs := make([]uint, 0, len(memberships))
	watermarks := make(map[uint]time.Time, len(memberships))
	for _, m := range memberships {
		chatIDs = append(chatIDs, m.ChatID)
		// Never read: everything counts as unread.
		watermarks[m.ChatID] = time.Unix(0, 0).UTC()
		if m.LastReadAt != nil {
			watermarks[m.ChatID] = *m.LastReadAt
		}
	}

	var chats []model.Chat
	if err := db.Where("id IN ?", chatIDs).Order("updated_at DESC").Order("id DESC").Find(&chats).Error; err != nil {
		return nil, internal("failed to load chats", err)
	}

	participants, err := s.participants(db, chatIDs)
	if err != nil {
		return nil, err
	}

	summaries := make([]ChatSummary, 0, len(chats))
	for _, chat := range chats {
		summary := ChatSummary{
			ID:           chat.ID,
			Type:         chat.Type,
			Participants: []ParticipantInfo{},
			CreatedAt:    chat.CreatedAt,
			UpdatedAt:    chat.UpdatedAt,
		}
		for _, p := range participants[chat.ID] {
			summary.Participants = append(summary.Participants, p.info())
		}
		summary.OtherParticipant = otherParticipant(chat, participants[chat.ID], userID)
		summary.Name = displayName(chat, summary.OtherParticipant)

		var last model.Message
		res := db.Where("chat_id = ?", chat.ID).Order("created_at DESC").Order("id DESC").Limit(1).Find(&last)
		if res.Error != nil {
			return nil, internal("failed to load last message", res.Error)
		}
		if res.RowsAffected > 0 {
			content, at := last.Content, last.CreatedAt
			summary.LastMessage = &content
			summary.LastMessageTime = &at
		}

		err := db.Model(&model.Message{}).
			Where("chat_id = ? AND sender_id <> ? AND created_at > ?", chat.ID, userID, watermarks[chat.ID]).
			Count(&summary.UnreadCount).Error
		if err != nil {
			return nil, internal("failed to count unread messages", err)
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// CreateDirectChat opens a direct chat between userID and contactID.
// An existing chat for the pair is reported as a Conflict carrying its id.
func (s *ChatDirectory) CreateDirectChat(ctx context.Context, userID, contactID uint) (*ChatSummary, error) {
	if contactID == 0 {
		return nil, invalidArgument("Contact ID is required")
	}
	if contactID == userID {
		return nil, invalidArgument("Cannot create chat with yourself")
	}

	db := s.db.WithContext(ctx)

	contact := new(model.User)
	err := db.First(contact, contactID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Contact not found")
	}
	if err != nil {
		return nil, internal("failed to load contact", err)
	}

	pairKey := model.DirectPairKey(userID, contactID)
	if existing, err := s.findDirect(db, pairKey); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, conflict("Direct chat already exists", existing.ID)
	}

	now := s.now()
	chat := model.Chat{
		Type:      model.ChatTypeDirect,
		CreatedBy: userID,
		PairKey:   &pairKey,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chat).Error; err != nil {
			return err
		}
		return tx.Create([]model.ChatParticipant{
			{ChatID: chat.ID, UserID: userID, JoinedAt: now},
			{ChatID: chat.ID, UserID: contactID, JoinedAt: now},
		}).Error
	})
	if err != nil {
		// A concurrent request for the same pair won the unique index.
		if existing, findErr := s.findDirect(db, pairKey); findErr == nil && existing != nil {
			return nil, conflict("Direct chat already exists", existing.ID)
		}
		return nil, internal("failed to create chat", err)
	}

	s.log.WithFields(logrus.Fields{
		"chat_id":    chat.ID,
		"user_id":    userID,
		"contact_id": contactID,
	}).Info("Direct chat created")

	other := &UserSummary{ID: contact.ID, Username: contact.Username}
	if other.Username == "" {
		other.Username = contact.Email
	}

	return &ChatSummary{
		ID:               chat.ID,
		Name:             other.Username,
		Type:             chat.Type,
		OtherParticipant: other,
		Participants:     []ParticipantInfo{},
		CreatedAt:        chat.CreatedAt,
		UpdatedAt:        chat.UpdatedAt,
	}, nil
}

// GetChat returns chat metadata and the full participant list.
func (s *ChatDirectory) GetChat(ctx context.Context, chatID, userID uint) (*ChatDetails, error) {
	db := s.db.WithContext(ctx)

	ok, err := isParticipant(db, chatID, userID)
	if err != nil {
		return nil, internal("failed to check participant", err)
	}
	if !ok {
		return nil, forbidden("Access denied")
	}

	chat := new(model.Chat)
	err = db.First(chat, chatID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Chat not found")
	}
	if err != nil {
		return nil, internal("failed to load chat", err)
	}

	participants, err := s.participants(db, []uint{chatID})
	if err != nil {
		return nil, err
	}

	details := &ChatDetails{
		ID:               chat.ID,
		Name:             chat.Name,
		Type:             chat.Type,
		OtherParticipant: otherParticipant(*chat, participants[chatID], userID),
		Participants:     make([]ParticipantInfo, 0, len(participants[chatID])),
		CreatedAt:        chat.CreatedAt,
		UpdatedAt:        chat.UpdatedAt,
	}
	for _, p := range participants[chatID] {
		details.Participants = append(details.Participants, p.info())
	}

	return details, nil
}

// ChatIDs lists the chats userID participates in.
func (s *ChatDirectory) ChatIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&model.ChatParticipant{}).
		Where("user_id = ?", userID).
		Order("chat_id").
		Pluck("chat_id", &ids).Error
	if err != nil {
		return nil, internal("failed to load chat memberships", err)
	}
	return ids, nil
}

// ParticipantIDs lists the users of chatID.
func (s *ChatDirectory) ParticipantIDs(ctx context.Context, chatID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&model.ChatParticipant{}).
		Where("chat_id = ?", chatID).
		Order("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, internal("failed to load participants", err)
	}
	return ids, nil
}

func (s *ChatDirectory) findDirect(db *gorm.DB, pairKey string) (*model.Chat, error) {
	var chat model.Chat
	res := db.Where("pair_key = ? AND type = ?", pairKey, model.ChatTypeDirect).Limit(1).Find(&chat)
	if res.Error != nil {
		return nil, internal("failed to look up direct chat", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &chat, nil
}

func (s *ChatDirectory) participants(db *gorm.DB, chatIDs []uint) (map[uint][]participantRow, error) {
	var rows []participantRow
	err := db.Table("chat_participants AS cp").
		Select("cp.chat_id, cp.user_id, u.username, u.email, u.avatar_url, u.status, cp.joined_at").
		Joins("JOIN users u ON u.id = cp.user_id").
		Where("cp.chat_id IN ?", chatIDs).
		Order("cp.id").
		Scan(&rows).Error
	if err != nil {
		return nil, internal("failed to load participants", err)
	}

	byChat := make(map[uint][]participantRow, len(chatIDs))
	for _, r := range rows {
		byChat[r.ChatID] = append(byChat[r.ChatID], r)
	}
	return byChat, nil
}

func otherParticipant(chat model.Chat, rows []participantRow, userID uint) *UserSummary {
	if chat.Type != model.ChatTypeDirect {
		return nil
	}
	for _, r := range rows {
		if r.UserID != userID {
			return &UserSummary{ID: r.UserID, Username: r.Username}
		}
	}
	return nil
}

func displayName(chat model.Chat, other *UserSummary) string {
	switch {
	case chat.Type == model.ChatTypeDirect && other != nil:
		return other.Username
	case chat.Name != nil && *chat.Name != "":
		return *chat.Name
	default:
		return "Direct Chat"
	}
}
