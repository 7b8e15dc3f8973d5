package stubs

import (
	"github.com/khetumewada/WebChat/internal/models"
)

var Users = []models.User{
	{UserName: "alice", FullName: "Alice Smith", ProfileImage: "https://api.dicebear.com/7.x/avataaars/svg?seed=Alice"},
	{UserName: "bob", FullName: "Bob Jones"},
	{UserName: "charlie", FullName: "Charlie", ProfileImage: "https://api.dicebear.com/7.x/avataaars/svg?seed=Charlie"},
}

type directory interface {
	ListUsers() ([]models.User, error)
	AddUser(user models.User) (models.User, error)
}

// Seed fills an empty directory with Users. A directory that already has
// users is left alone.
func Seed(dir directory) error {
	existing, err := dir.ListUsers()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, u := range Users {
		if _, err := dir.AddUser(u); err != nil {
			return err
		}
	}
	return nil
}
