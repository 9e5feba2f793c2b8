package main

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GroupService owns group creation, join/leave, role promotion, and kick.
// Every mutation runs inside one transaction so validation reads and the
// resulting writes cannot race each other.
type GroupService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewGroupService(db *gorm.DB, log *zap.Logger) *GroupService {
	return &GroupService{db: db, log: log}
}

type GroupInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	GroupNumber int     `json:"groupNumber"`
	InviteLink  string  `json:"inviteLink"`
}

// CreateGroup persists the group together with the creator's admin
// membership, or neither.
func (s *GroupService) CreateGroup(ctx context.Context, in GroupInput, creatorID string) (*Group, error) {
	if in.Name == "" || in.GroupNumber == 0 || in.InviteLink == "" {
		return nil, validationErrorf("name, groupNumber and inviteLink are required")
	}

	group := Group{
		Name:        in.Name,
		Description: in.Description,
		GroupNumber: in.GroupNumber,
		InviteLink:  in.InviteLink,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		membership := GroupMembership{UserID: creatorID, GroupID: group.ID, Role: RoleAdmin}
		return tx.Create(&membership).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("group created", zap.Uint("group_id", group.ID), zap.String("creator", creatorID))
	return &group, nil
}

// JoinGroup is idempotent: an existing membership returns the group without
// writing anything.
func (s *GroupService) JoinGroup(ctx context.Context, userID string, groupID uint) (*Group, error) {
	var group Group
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundErrorf("user with id %s does not exist", userID)
			}
			return err
		}
		if err := tx.First(&group, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundErrorf("group with id %d does not exist", groupID)
			}
			return err
		}

		var existing GroupMembership
		err := tx.Where("user_id = ? AND group_id = ?", userID, groupID).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		membership := GroupMembership{UserID: userID, GroupID: groupID, Role: RoleMember}
		return tx.Create(&membership).Error
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// LeaveGroup removes the caller's membership. When the caller is the last
// admin the whole group goes away with it, memberships and tasks included,
// so no group is ever left without an admin.
func (s *GroupService) LeaveGroup(ctx context.Context, userID string, groupID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var membership GroupMembership
		err := tx.Where("user_id = ? AND group_id = ?", userID, groupID).First(&membership).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundErrorf("user is not a member of this group")
		}
		if err != nil {
			return err
		}

		if membership.Role == RoleAdmin {
			var otherAdmins int64
			err := tx.Model(&GroupMembership{}).
				Where("group_id = ? AND role = ? AND user_id <> ?", groupID, RoleAdmin, userID).
				Count(&otherAdmins).Error
			if err != nil {
				return err
			}
			if otherAdmins == 0 {
				s.log.Info("last admin left, deleting group", zap.Uint("group_id", groupID))
				return deleteGroupCascade(tx, groupID)
			}
		}

		return tx.Delete(&membership).Error
	})
}

// deleteGroupCascade removes a group with its memberships and tasks inside
// the caller's transaction.
func deleteGroupCascade(tx *gorm.DB, groupID uint) error {
	if err := tx.Where("group_id = ?", groupID).Delete(&GroupMembership{}).Error; err != nil {
		return err
	}
	if err := tx.Where("group_id = ?", groupID).Delete(&Task{}).Error; err != nil {
		return err
	}
	return tx.Delete(&Group{}, groupID).Error
}

// PromoteToAdmin raises a member to admin. Only admins may promote;
// promoting an admin again is a no-op.
func (s *GroupService) PromoteToAdmin(ctx context.Context, promoterID, targetID string, groupID uint) (*GroupMembership, error) {
	var target GroupMembership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var promoter GroupMembership
		err := tx.Where("user_id = ? AND group_id = ?", promoterID, groupID).First(&promoter).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && promoter.Role != RoleAdmin) {
			return permissionErrorf("only admins can promote other members")
		}
		if err != nil {
			return err
		}

		err = tx.Where("user_id = ? AND group_id = ?", targetID, groupID).First(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundErrorf("user to be promoted is not a member of this group")
		}
		if err != nil {
			return err
		}

		target.Role = RoleAdmin
		return tx.Save(&target).Error
	})
	if err != nil {
		return nil, err
	}
	return &target, nil
}

// KickUser removes another member from the group. Admins cannot be kicked,
// and self-removal has to go through LeaveGroup.
func (s *GroupService) KickUser(ctx context.Context, kickerID, targetID string, groupID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var kicker GroupMembership
		err := tx.Where("user_id = ? AND group_id = ?", kickerID, groupID).First(&kicker).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && kicker.Role != RoleAdmin) {
			return permissionErrorf("only admins can kick members")
		}
		if err != nil {
			return err
		}

		var target GroupMembership
		err = tx.Where("user_id = ? AND group_id = ?", targetID, groupID).First(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundErrorf("user to be kicked is not a member of this group")
		}
		if err != nil {
			return err
		}

		if target.Role == RoleAdmin {
			return permissionErrorf("admins cannot kick other admins")
		}
		if kickerID == targetID {
			return permissionErrorf("you cannot kick yourself, leave the group instead")
		}

		return tx.Delete(&target).Error
	})
}

func (s *GroupService) AllGroups(ctx context.Context) ([]Group, error) {
	var groups []Group
	if err := s.db.WithContext(ctx).Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// GroupsForUser returns every group reachable through the user's
// memberships.
func (s *GroupService) GroupsForUser(ctx context.Context, userID string) ([]Group, error) {
	return s.groupsByMembership(ctx, userID, nil)
}

// AdminGroupsForUser returns only the groups where the user is admin.
func (s *GroupService) AdminGroupsForUser(ctx context.Context, userID string) ([]Group, error) {
	role := RoleAdmin
	return s.groupsByMembership(ctx, userID, &role)
}

func (s *GroupService) groupsByMembership(ctx context.Context, userID string, role *Role) ([]Group, error) {
	var user User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundErrorf("user with id %s does not exist", userID)
		}
		return nil, err
	}

	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if role != nil {
		query = query.Where("role = ?", *role)
	}
	var memberships []GroupMembership
	if err := query.Find(&memberships).Error; err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return []Group{}, nil
	}

	ids := make([]uint, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.GroupID)
	}
	var groups []Group
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// GroupMember pairs a user with the role they hold in a group.
type GroupMember struct {
	User User `json:"user"`
	Role Role `json:"role"`
}

func (s *GroupService) GroupMembers(ctx context.Context, groupID uint) ([]GroupMember, error) {
	var group Group
	if err := s.db.WithContext(ctx).First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundErrorf("group with id %d does not exist", groupID)
		}
		return nil, err
	}

	var memberships []GroupMembership
	err := s.db.WithContext(ctx).Preload("User").Where("group_id = ?", groupID).Find(&memberships).Error
	if err != nil {
		return nil, err
	}

	members := make([]GroupMember, 0, len(memberships))
	for _, m := range memberships {
		members = append(members, GroupMember{User: m.User, Role: m.Role})
	}
	return members, nil
}

// memberIDs is a read helper for the group payload.
func (s *GroupService) memberIDs(ctx context.Context, groupID uint) ([]string, error) {
	var memberships []GroupMembership
	err := s.db.WithContext(ctx).Where("group_id = ?", groupID).Find(&memberships).Error
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}
