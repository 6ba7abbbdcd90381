package models

// Capability names an operation guarded by the access-control gate.
type Capability string

const (
	CapViewProfile    Capability = "profile:view"
	CapUploadDocument Capability = "document:upload"
	CapCreateSubject  Capability = "subject:create"
	CapEditContent    Capability = "content:edit"
	CapListDeleted    Capability = "content:list-deleted"
	CapSoftDelete     Capability = "content:soft-delete"
	CapRestore        Capability = "content:restore"
	CapHardDelete     Capability = "content:hard-delete"
	CapBulkDelete     Capability = "content:bulk-delete"
	CapManageAccounts Capability = "accounts:manage"
	CapMaintenance    Capability = "maintenance:run"
	CapExportLedger   Capability = "ledger:export"
)

var (
	everyone   = []Role{RoleStudent, RoleCR, RoleTeacher, RoleAdmin}
	uploaders  = []Role{RoleAdmin, RoleTeacher, RoleCR}
	moderators = []Role{RoleAdmin, RoleTeacher}
	adminsOnly = []Role{RoleAdmin}
)

var capabilityTable = map[Capability][]Role{
	CapViewProfile:    everyone,
	CapUploadDocument: uploaders,
	CapCreateSubject:  uploaders,
	CapEditContent:    moderators,
	CapListDeleted:    moderators,
	CapSoftDelete:     moderators,
	CapRestore:        moderators,
	CapHardDelete:     adminsOnly,
	CapBulkDelete:     adminsOnly,
	CapManageAccounts: adminsOnly,
	CapMaintenance:    adminsOnly,
	CapExportLedger:   adminsOnly,
}
