package auth

// Permission keys for the storefront's administrative surface.
const (
	PermManageUsers    = "users.manage"
	PermManageRoles    = "roles.manage"
	PermManageCatalog  = "catalog.manage"
	PermManageOrders   = "orders.manage"
	PermViewOrders     = "orders.view"
	PermManageShipping = "shipping.manage"
)

var BuiltinPermissions = []Permission{
	{Key: PermManageUsers, Description: "Create, update, and deactivate accounts"},
	{Key: PermManageRoles, Description: "Manage roles and their permissions"},
	{Key: PermManageCatalog, Description: "Manage dolls, variants, and collections"},
	{Key: PermManageOrders, Description: "Update and fulfil customer orders"},
	{Key: PermViewOrders, Description: "Read customer orders"},
	{Key: PermManageShipping, Description: "Manage shipping providers and rates"},
}
