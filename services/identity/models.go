package identity

import "time"

type User struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	Username     string       `json:"username" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string       `json:"-" gorm:"size:255;not null"`
	Name         string       `json:"name" gorm:"size:255;not null"`
	Email        string       `json:"email" gorm:"size:255;not null"`
	Enabled      bool         `json:"enabled" gorm:"not null"`
	IsAdmin      bool         `json:"is_admin" gorm:"not null"`
	Permissions  []Permission `json:"permissions,omitempty" gorm:"many2many:user_permissions;"`
	Groups       []Group      `json:"groups,omitempty" gorm:"many2many:user_groups;"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

type Group struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"uniqueIndex;size:255;not null"`
	Permissions []Permission `json:"permissions,omitempty" gorm:"many2many:group_permissions;"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (Group) TableName() string {
	return "groups"
}

type Permission struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Key         string `json:"key" gorm:"uniqueIndex;size:255;not null"`
	Name        string `json:"name" gorm:"size:255;not null"`
	Description string `json:"description" gorm:"size:500"`
	Category    string `json:"category" gorm:"size:100"`
}

func (Permission) TableName() string {
	return "permissions"
}

// Models lists every table this package owns, for AutoMigrate.
func Models() []any {
	return []any{&Permission{}, &Group{}, &User{}}
}

// Record is the read model handed to authorization: a subject with its direct grants and
// the grants of every group it belongs to.
type Record struct {
	ID          uint
	Subject     string
	Name        string
	Email       string
	Permissions []string
	Groups      []GroupRecord
	Enabled     bool
	IsAdmin     bool
}

type GroupRecord struct {
	Name        string
	Permissions []string
}

func recordFromUser(u *User) *Record {
	r := &Record{
		ID:          u.ID,
		Subject:     u.Username,
		Name:        u.Name,
		Email:       u.Email,
		Permissions: permissionKeys(u.Permissions),
		Enabled:     u.Enabled,
		IsAdmin:     u.IsAdmin,
	}
	for _, g := range u.Groups {
		r.Groups = append(r.Groups, GroupRecord{Name: g.Name, Permissions: permissionKeys(g.Permissions)})
	}
	return r
}

func permissionKeys(perms []Permission) []string {
	keys := make([]string, 0, len(perms))
	for _, p := range perms {
		keys = append(keys, p.Key)
	}
	return keys
}
