package constants

const (
	PurchasePrompts = "purchase_prompts"
	ManagePrompts   = "manage_prompts"
	ViewEarnings    = "view_earnings"
	RequestPayout   = "request_payout"
	ModeratePrompts = "moderate_prompts"
	ModerateReviews = "moderate_reviews"
	ManageTaxonomy  = "manage_taxonomy"
	ManagePayouts   = "manage_payouts"
	RefundPurchases = "refund_purchases"
	ManageUsers     = "manage_users"
	ViewPlatform    = "view_platform_analytics"
)

// PermissionRoles maps each permission to the roles allowed to perform it.
// Sellers keep buyer capabilities.
var PermissionRoles = map[string][]string{
	PurchasePrompts: {Buyer, Seller, Admin},
	ManagePrompts:   {Seller, Admin},
	ViewEarnings:    {Seller, Admin},
	RequestPayout:   {Seller},
	ModeratePrompts: {Admin},
	ModerateReviews: {Admin},
	ManageTaxonomy:  {Admin},
	ManagePayouts:   {Admin},
	RefundPurchases: {Admin},
	ManageUsers:     {Admin},
	ViewPlatform:    {Admin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	roles, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
