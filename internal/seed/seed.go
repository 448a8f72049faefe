package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/crewbill/internal/invoice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsureDefaultOrg prepares the bootstrap organization so its first invoice
// is numbered 1.
func EnsureDefaultOrg(db *gorm.DB, orgID snowflake.ID) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if orgID == 0 {
		return errors.New("seed organization id is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := ensureInvoiceSequenceTx(ctx, tx, orgID)
		return err
	})
}

func ensureInvoiceSequenceTx(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (invoicedomain.InvoiceSequence, error) {
	seq := invoicedomain.InvoiceSequence{
		OrgID:     orgID,
		NextValue: 1,
		UpdatedAt: time.Now().UTC(),
	}
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&seq).Error
	if err != nil {
		return seq, err
	}

	var current invoicedomain.InvoiceSequence
	if err := tx.WithContext(ctx).Where("org_id = ?", orgID).Take(&current).Error; err != nil {
		return seq, err
	}
	return current, nil
}
