package denylist

// Category groups destructive gh commands.
type Category string

const (
	CategoryMerge         Category = "merge"
	CategoryRepoDelete    Category = "repo_delete"
	CategoryRepoArchive   Category = "repo_archive"
	CategoryReleaseDelete Category = "release_delete"
	CategoryAuthLogin     Category = "auth_login"
	CategoryAuthLogout    Category = "auth_logout"
	CategoryConfigSet     Category = "config_set"
	CategoryAlias         Category = "alias"
	CategoryExtension     Category = "extension"
	CategoryGraphQL       Category = "graphql"
	CategoryCustom        Category = "custom"
)

// DefaultRules are always enforced. Extra rules from configuration add to
// them; nothing can remove one.
var DefaultRules = []Rule{
	{Category: CategoryMerge, Command: "pr merge", Reason: "merging is reserved for humans"},
	{Category: CategoryRepoDelete, Command: "repo delete", Reason: "repository deletion is irreversible"},
	{Category: CategoryRepoArchive, Command: "repo archive", Reason: "archiving makes the repository read-only"},
	{Category: CategoryReleaseDelete, Command: "release delete", Reason: "release deletion is irreversible"},
	{Category: CategoryReleaseDelete, Command: "release delete-asset", Reason: "release asset deletion is irreversible"},
	{Category: CategoryAuthLogin, Command: "auth login", Reason: "credentials are managed by the gateway"},
	{Category: CategoryAuthLogout, Command: "auth logout", Reason: "credentials are managed by the gateway"},
	{Category: CategoryAuthLogin, Command: "auth refresh", Reason: "credentials are managed by the gateway"},
	{Category: CategoryAuthLogin, Command: "auth token", Reason: "the gateway token is never exposed"},
	{Category: CategoryConfigSet, Command: "config set", Reason: "gh configuration is managed by the gateway"},
	{Category: CategoryAlias, Command: "alias set", Reason: "aliases can rename blocked commands or run shell"},
	{Category: CategoryAlias, Command: "alias import", Reason: "aliases can rename blocked commands or run shell"},
	{Category: CategoryExtension, Command: "ext* install", Reason: "extensions run unreviewed code with the gateway token"},
	{Category: CategoryExtension, Command: "ext* upgrade", Reason: "extensions run unreviewed code with the gateway token"},
	{Category: CategoryExtension, Command: "ext* exec", Reason: "extensions run unreviewed code with the gateway token"},
	{Category: CategoryExtension, Command: "ext* create", Reason: "extensions run unreviewed code with the gateway token"},
}
