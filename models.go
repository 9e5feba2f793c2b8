package main

import (
	"time"
)

// Role is the authorization level a user holds inside a group.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Status is the lifecycle state of a task. "expired" is a frontend-only
// display state and is never persisted.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusDone       Status = "done"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// User mirrors the Keycloak account locally. The ID is the Keycloak "sub".
type User struct {
	ID       string     `json:"id" gorm:"primaryKey;size:50"`
	Username string     `json:"username" gorm:"size:100;not null"`
	Email    string     `json:"email" gorm:"size:150;not null"`
	Birthday *time.Time `json:"birthday,omitempty"`
	Faculty  *string    `json:"faculty,omitempty" gorm:"size:100"`

	Memberships []GroupMembership `json:"-" gorm:"foreignKey:UserID"`
	Tasks       []Task            `json:"-" gorm:"foreignKey:UserID"`
}

type Group struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Name        string  `json:"name" gorm:"size:150;not null"`
	Description *string `json:"description,omitempty"`
	GroupNumber int     `json:"groupNumber" gorm:"not null"`
	InviteLink  string  `json:"inviteLink" gorm:"size:200;not null"`

	Memberships []GroupMembership `json:"-" gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	Tasks       []Task            `json:"-" gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
}

// GroupMembership is the association between a user and a group, carrying
// the role. The composite primary key makes the pair unique at the storage
// level, so two concurrent joins cannot both insert.
type GroupMembership struct {
	UserID  string `json:"user_id" gorm:"primaryKey;size:50"`
	GroupID uint   `json:"group_id" gorm:"primaryKey"`
	Role    Role   `json:"role" gorm:"type:varchar(20);not null;default:'member'"`

	User  User  `json:"-" gorm:"foreignKey:UserID"`
	Group Group `json:"-" gorm:"foreignKey:GroupID"`
}

type Task struct {
	ID       uint      `json:"id" gorm:"primaryKey"`
	Title    string    `json:"title" gorm:"size:150;not null"`
	Deadline time.Time `json:"deadline" gorm:"not null"`
	Kind     string    `json:"kind" gorm:"size:50;not null"`
	Priority Priority  `json:"priority" gorm:"type:varchar(20);not null"`
	Status   Status    `json:"status" gorm:"type:varchar(20);not null;default:'todo'"`
	Progress int       `json:"progress" gorm:"not null;default:0"`
	// Assignee is a user id, validated at write time rather than enforced
	// as a foreign key.
	Assignee *string `json:"assignee,omitempty" gorm:"size:100"`
	Notes    *string `json:"notes,omitempty"`
	UserID   *string `json:"user_id,omitempty" gorm:"size:50;index"`
	GroupID  *uint   `json:"group_id,omitempty" gorm:"index"`

	User  *User  `json:"-" gorm:"foreignKey:UserID"`
	Group *Group `json:"-" gorm:"foreignKey:GroupID"`
}
