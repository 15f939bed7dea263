package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"relatim-chat/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const searchLimit = 10

// likeEscaper makes the search query match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type ContactService struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewContactService(db *gorm.DB, log *logrus.Logger) *ContactService {
	return &ContactService{db: db, log: log}
}

func (s *ContactService) List(ctx context.Context, userID uint) ([]ContactView, error) {
	contacts := []ContactView{}
	err := s.db.WithContext(ctx).Table("contacts AS c").
		Select("u.id, u.username, u.email, u.avatar_url, u.status, u.last_seen, c.created_at AS contact_added_at").
		Joins("JOIN users u ON u.id = c.contact_id").
		Where("c.user_id = ?", userID).
		Order("u.username").
		Scan(&contacts).Error
	if err != nil {
		return nil, internal("failed to load contacts", err)
	}
	return contacts, nil
}

// Add links userID and the user referenced by ref in both directions. ref is
// a numeric user id, a username or an email.
func (s *ContactService) Add(ctx context.Context, userID uint, ref string) (*ContactView, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, invalidArgument("Contact ID or username/email is required")
	}

	db := s.db.WithContext(ctx)

	contact := new(model.User)
	err := gorm.ErrRecordNotFound
	if id, parseErr := strconv.ParseUint(ref, 10, 64); parseErr == nil {
		err = db.First(contact, uint(id)).Error
	}
	// An all-digit username is still a username.
	if errors.Is(err, gorm.ErrRecordNotFound) {
		contact = new(model.User)
		err = db.Where("username = ? OR email = ?", ref, ref).First(contact).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("Contact not found")
	}
	if err != nil {
		return nil, internal("failed to resolve contact", err)
	}

	if contact.ID == userID {
		return nil, invalidArgument("Cannot add yourself as a contact")
	}

	var existing int64
	err = db.Model(&model.Contact{}).
		Where("user_id = ? AND contact_id = ?", userID, contact.ID).
		Count(&existing).Error
	if err != nil {
		return nil, internal("failed to check contact", err)
	}
	if existing > 0 {
		return nil, conflict("Contact already added", 0)
	}

	edges := []model.Contact{
		{UserID: userID, ContactID: contact.ID},
		{UserID: contact.ID, ContactID: userID},
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		// The reverse edge may survive from a half-removed pair.
		if err := tx.Where("user_id = ? AND contact_id = ?", contact.ID, userID).Delete(&model.Contact{}).Error; err != nil {
			return err
		}
		return tx.Create(&edges).Error
	})
	if err != nil {
		return nil, internal("failed to add contact", err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"contact_id": contact.ID,
	}).Info("Contact added")

	addedAt := edges[0].CreatedAt
	return &ContactView{
		ID:             contact.ID,
		Username:       contact.Username,
		Email:          contact.Email,
		AvatarURL:      contact.AvatarURL,
		Status:         contact.Status,
		LastSeen:       contact.LastSeen,
		ContactAddedAt: &addedAt,
	}, nil
}

// Remove deletes both directions of the contact edge.
func (s *ContactService) Remove(ctx context.Context, userID, contactID uint) error {
	res := s.db.WithContext(ctx).
		Where("(user_id = ? AND contact_id = ?) OR (user_id = ? AND contact_id = ?)", userID, contactID, contactID, userID).
		Delete(&model.Contact{})
	if res.Error != nil {
		return internal("failed to remove contact", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("Contact not found")
	}
	return nil
}

// Search finds users that userID could add: case-insensitive match on
// username or email, excluding the caller and existing contacts.
func (s *ContactService) Search(ctx context.Context, userID uint, query string) ([]ContactView, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < 2 {
		return nil, invalidArgument("Search query must be at least 2 characters")
	}

	db := s.db.WithContext(ctx)
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
	known := db.Model(&model.Contact{}).Select("contact_id").Where("user_id = ?", userID)

	users := []ContactView{}
	err := db.Model(&model.User{}).
		Select("id, username, email, avatar_url, status, last_seen").
		Where(`(LOWER(username) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')`, pattern, pattern).
		Where("id <> ?", userID).
		Where("id NOT IN (?)", known).
		Order("username").
		Limit(searchLimit).
		Scan(&users).Error
	if err != nil {
		return nil, internal("failed to search users", err)
	}
	return users, nil
}
