package auth

// Builtin permission keys. The catalog is static: end users are granted
// permissions from it but never extend it.
const (
	PermProjects      = "projects"
	PermPeople        = "people"
	PermCategories    = "categories"
	PermDeleteAccount = "delete_account"
	PermPermissions   = "permissions"
)

var BuiltinPermissions = []Permission{
	{Key: PermProjects, Description: "Manage graduation project records"},
	{Key: PermPeople, Description: "Manage student and supervisor records"},
	{Key: PermCategories, Description: "Manage project categories"},
	{Key: PermDeleteAccount, Description: "Delete accounts"},
	{Key: PermPermissions, Description: "Grant and revoke account permissions"},
}
