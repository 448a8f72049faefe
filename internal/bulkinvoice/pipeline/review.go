package pipeline

import (
	"github.com/smallbiznis/crewbill/internal/bulkinvoice/domain"
)

// ToggleLineItem sets an item's selection and recomputes the group total.
func ToggleLineItem(group domain.CustomerGroup, itemID string, selected bool) (domain.CustomerGroup, error) {
	updated := cloneGroup(group)
	idx := findItem(updated.LineItems, itemID)
	if idx < 0 {
		return group, domain.ErrLineItemNotFound
	}
	updated.LineItems[idx].Selected = selected
	return recompute(updated), nil
}

// EditLineItemDescription replaces an item's description. Totals are kept.
func EditLineItemDescription(group domain.CustomerGroup, itemID, description string) (domain.CustomerGroup, error) {
	updated := cloneGroup(group)
	idx := findItem(updated.LineItems, itemID)
	if idx < 0 {
		return group, domain.ErrLineItemNotFound
	}
	updated.LineItems[idx].Description = description
	return updated, nil
}

// ToggleCustomer sets the group selection. Only groups with selected items
// can be selected.
func ToggleCustomer(group domain.CustomerGroup, selected bool) (domain.CustomerGroup, error) {
	if selected && len(group.SelectedItems()) == 0 {
		return group, domain.ErrNotSelectable
	}
	updated := cloneGroup(group)
	updated.Selected = selected
	return updated, nil
}

func findItem(items []domain.LineItem, itemID string) int {
	for i := range items {
		if items[i].ID == itemID {
			return i
		}
	}
	return -1
}
