package listings

import (
	"context"
	"encoding/json"

	"promptmarket/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func recordEvent(tx *gorm.DB, listingID, actorID uuid.UUID, eventType string, data map[string]interface{}) error {
	ev := &domain.ListingEvent{ListingID: listingID, ActorID: actorID, EventType: eventType}
	if len(data) > 0 {
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		ev.EventData = datatypes.JSON(b)
	}
	return tx.Create(ev).Error
}

// History returns the moderation history of a prompt, oldest first.
// Only the owner and admins may read it.
func (s *Service) History(ctx context.Context, actor Actor, id uuid.UUID) ([]domain.ListingEvent, error) {
	var l domain.Listing
	if err := s.DB.WithContext(ctx).Select("id", "seller_id").First(&l, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	if l.SellerID != actor.ID && !actor.isAdmin() {
		return nil, ErrNotOwner
	}
	var events []domain.ListingEvent
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", id).Order(`"createdAt" ASC`).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
