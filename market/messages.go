package market

import (
	"context"
	"strings"

	"farmdirect/models"
	"farmdirect/realtime"
)

// GetOrCreateConversation returns the thread between a and b, creating it
// on first contact. Product and order context are attached when given.
func (s *Service) GetOrCreateConversation(ctx context.Context, a, b string, productID, orderID *string) (*models.Conversation, error) {
	if a == "" || b == "" {
		return nil, &ValidationError{Field: "participant_id", Message: "is required"}
	}
	if a == b {
		return nil, &ValidationError{Field: "participant_id", Message: "cannot start a conversation with yourself"}
	}
	if b < a {
		a, b = b, a
	}
	productID, orderID = trimmed(productID), trimmed(orderID)

	conv, err := s.findConversation(ctx, a, b)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		now := s.now()
		conv = &models.Conversation{
			Participant1: a,
			Participant2: b,
			ProductID:    productID,
			OrderID:      orderID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		err := s.store(ctx).Create(conv).Error
		if err == nil {
			s.publish("conversations", realtime.Insert, conv, nil)
			return conv, nil
		}
		if !isDuplicateKey(err) {
			return nil, storeErr("create conversation", err)
		}
		// lost the race to the other participant
		if conv, err = s.findConversation(ctx, a, b); err != nil {
			return nil, err
		}
		if conv == nil {
			return nil, notFound("conversation")
		}
	}

	updates := map[string]interface{}{}
	if productID != nil && (conv.ProductID == nil || *conv.ProductID != *productID) {
		updates["product_id"] = *productID
		conv.ProductID = productID
	}
	if orderID != nil && (conv.OrderID == nil || *conv.OrderID != *orderID) {
		updates["order_id"] = *orderID
		conv.OrderID = orderID
	}
	if len(updates) > 0 {
		conv.UpdatedAt = s.now()
		updates["updated_at"] = conv.UpdatedAt
		if err := s.store(ctx).Model(&models.Conversation{}).Where("id = ?", conv.ID).Updates(updates).Error; err != nil {
			return nil, storeErr("update conversation context", err)
		}
	}
	return conv, nil
}

func (s *Service) findConversation(ctx context.Context, a, b string) (*models.Conversation, error) {
	var convs []models.Conversation
	if err := s.store(ctx).Where("participant_1 = ? AND participant_2 = ?", a, b).Limit(1).Find(&convs).Error; err != nil {
		return nil, storeErr("find conversation", err)
	}
	if len(convs) == 0 {
		return nil, nil
	}
	return &convs[0], nil
}

// ListConversations returns userID's threads, most recently active first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	if err := s.store(ctx).
		Where("participant_1 = ? OR participant_2 = ?", userID, userID).
		Order("updated_at desc").
		Find(&convs).Error; err != nil {
		return nil, storeErr("list conversations", err)
	}
	return convs, nil
}

func (s *Service) conversationFor(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.store(ctx).First(&conv, "id = ?", conversationID).Error; err != nil {
		return nil, lookupErr("conversation", err)
	}
	if !conv.HasParticipant(userID) {
		return nil, forbidden("not a participant of the conversation")
	}
	return &conv, nil
}

// SendMessage appends a message and bumps the conversation so it sorts first.
func (s *Service) SendMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &ValidationError{Field: "content", Message: "is required"}
	}
	conv, err := s.conversationFor(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	msg := models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      now,
	}

	tx := s.store(ctx).Begin()
	if tx.Error != nil {
		return nil, storeErr("begin send message", tx.Error)
	}
	if err := tx.Create(&msg).Error; err != nil {
		tx.Rollback()
		return nil, storeErr("create message", err)
	}
	if err := tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).Update("updated_at", now).Error; err != nil {
		tx.Rollback()
		return nil, storeErr("touch conversation", err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, storeErr("commit send message", err)
	}

	s.publish("messages", realtime.Insert, msg, realtime.Row{
		"participant_1": conv.Participant1,
		"participant_2": conv.Participant2,
	})
	return &msg, nil
}

// ListMessages returns the thread oldest first.
func (s *Service) ListMessages(ctx context.Context, conversationID, userID string) ([]models.Message, error) {
	if _, err := s.conversationFor(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	var msgs []models.Message
	if err := s.store(ctx).Where("conversation_id = ?", conversationID).Order("created_at asc").Find(&msgs).Error; err != nil {
		return nil, storeErr("list messages", err)
	}
	return msgs, nil
}

// MarkRead stamps read_at on the other party's unread messages and reports
// how many were marked.
func (s *Service) MarkRead(ctx context.Context, conversationID, userID string) (int64, error) {
	if _, err := s.conversationFor(ctx, conversationID, userID); err != nil {
		return 0, err
	}
	res := s.store(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", conversationID, userID).
		Update("read_at", s.now())
	if res.Error != nil {
		return 0, storeErr("mark messages read", res.Error)
	}
	return res.RowsAffected, nil
}
