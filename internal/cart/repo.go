package cart

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// Repository persists cart lines, the source of truth for quantities and
// campaign pricing.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Snapshot is a user's cart as loaded from storage.
type Snapshot struct {
	Lines    []Line
	Platform map[string]PlatformVoucherInfo
}

// ListByUser loads the user's cart lines in display order together with the
// platform campaign info keyed by product id.
func (r *Repository) ListByUser(ctx context.Context, userID string) (*Snapshot, error) {
	var rows []models.CartLine
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("position ASC").
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart lines")
	}

	snap := &Snapshot{
		Lines:    make([]Line, 0, len(rows)),
		Platform: make(map[string]PlatformVoucherInfo),
	}
	for _, row := range rows {
		snap.Lines = append(snap.Lines, lineFromModel(row))
		info := PlatformVoucherInfo{
			DiscountPerUnit: row.PlatformDiscountPerUnit,
			InCampaign:      row.InCampaign,
		}
		if row.CampaignVoucherID != nil {
			info.CampaignVoucherID = *row.CampaignVoucherID
		}
		if !info.Eligible() && info.CampaignVoucherID == "" {
			continue
		}
		if _, seen := snap.Platform[row.ProductID]; !seen {
			snap.Platform[row.ProductID] = info
		}
	}
	return snap, nil
}

// Save upserts the provided lines for userID, keeping their order.
func (r *Repository) Save(ctx context.Context, userID string, lines []Line, platform map[string]PlatformVoucherInfo) error {
	if len(lines) == 0 {
		return nil
	}
	rows := make([]models.CartLine, 0, len(lines))
	for i, l := range lines {
		if err := l.Validate(); err != nil {
			return err
		}
		rows = append(rows, modelFromLine(userID, i, l, platform[l.ProductID]))
	}
	if err := r.db.WithContext(ctx).Save(&rows).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save cart lines")
	}
	return nil
}

// SetSelected toggles selection for the given line ids.
func (r *Repository) SetSelected(ctx context.Context, userID string, lineIDs []string, selected bool) error {
	if len(lineIDs) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("user_id = ? AND id IN ?", userID, lineIDs).
		Update("selected", selected).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart selection")
	}
	return nil
}

// RemoveLines deletes purchased lines after a successful submission.
func (r *Repository) RemoveLines(ctx context.Context, userID string, lineIDs []string) error {
	if len(lineIDs) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, lineIDs).
		Delete(&models.CartLine{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart lines")
	}
	return nil
}

func lineFromModel(row models.CartLine) Line {
	return Line{
		ID:                row.ID,
		ProductID:         row.ProductID,
		VariantID:         row.VariantID,
		ComboID:           row.ComboID,
		Quantity:          row.Quantity,
		UnitPrice:         row.UnitPrice,
		OriginalUnitPrice: row.OriginalUnitPrice,
		Kind:              row.Kind,
		Selected:          row.Selected,
	}
}

func modelFromLine(userID string, position int, l Line, info PlatformVoucherInfo) models.CartLine {
	row := models.CartLine{
		ID:                      l.ID,
		UserID:                  userID,
		ProductID:               l.ProductID,
		VariantID:               l.VariantID,
		ComboID:                 l.ComboID,
		Kind:                    l.Kind,
		Quantity:                l.Quantity,
		UnitPrice:               l.UnitPrice,
		OriginalUnitPrice:       l.OriginalUnitPrice,
		Selected:                l.Selected,
		PlatformDiscountPerUnit: info.DiscountPerUnit,
		InCampaign:              info.InCampaign,
		Position:                position,
	}
	if info.CampaignVoucherID != "" {
		id := info.CampaignVoucherID
		row.CampaignVoucherID = &id
	}
	return row
}
