package admin

import (
	"discord-store-bot/internal/logger"
	"sort"
	"strings"
)

// PermissionAdministrator бит Administrator в правах участника Discord
const PermissionAdministrator int64 = 1 << 3

// Member то, что бот знает об авторе команды
type Member struct {
	UserID      string
	Permissions int64
	RoleNames   []string
}

// Access решает, кому доступны админ-команды
type Access struct {
	AuthorizedUsers []string
	AdminRoleName   string
}

func (a Access) IsAuthorized(userID string) bool {
	for _, id := range a.AuthorizedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// IsAdmin: доверенный пользователь, право Administrator или роль администратора бота
func (a Access) IsAdmin(m Member) bool {
	if a.IsAuthorized(m.UserID) {
		return true
	}
	if m.Permissions&PermissionAdministrator != 0 {
		return true
	}
	for _, r := range m.RoleNames {
		if a.AdminRoleName != "" && r == a.AdminRoleName {
			return true
		}
	}
	return false
}

// Audit пишет выполненную админ-команду в журнал
func Audit(adminID, command string, options map[string]string) {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+options[k])
	}
	logger.LogAdminAction(adminID, command, strings.Join(parts, " "))
}
