package auth

// Permission codes checked by the HTTP layer.
const (
	PermReadClients   = "ReadClients"
	PermModifyClients = "ModifyClients"
	PermDeleteClients = "DeleteClients"
	PermReadContracts = "ReadContracts"
)

// BuiltinPermissions is the catalog seeded on a fresh database.
var BuiltinPermissions = []Permission{
	{Code: PermReadClients, LabelEN: "Read clients", LabelFR: "Lire les clients", Description: "List, search and view clients"},
	{Code: PermModifyClients, LabelEN: "Modify clients", LabelFR: "Modifier les clients", Description: "Create, update, archive and recover clients"},
	{Code: PermDeleteClients, LabelEN: "Delete clients", LabelFR: "Supprimer les clients", Description: "Permanently destroy clients", Admin: true},
	{Code: PermReadContracts, LabelEN: "Read contracts", LabelFR: "Lire les contrats", Description: "List contracts of a client"},
}
