package github

import (
	"github.com/custodia-labs/backsync/internal/core/domain"
)

// Entity names of the built-in model.
const (
	EntityIssue = "Issue"
	EntityUser  = "User"
	EntityLabel = "Label"
)

// UniquingAttribute holds the GitHub database id of every entity.
const UniquingAttribute = "remoteID"

// Model returns a fresh copy of the built-in issue tracker model.
func Model() (*domain.Model, error) {
	return domain.NewModel(
		&domain.Entity{
			Name:              EntityIssue,
			UniquingAttribute: UniquingAttribute,
			Attributes: []string{
				UniquingAttribute, "number", "title", "body", "state", "url", "createdAt", "updatedAt",
			},
			Relationships: []*domain.Relationship{
				{Name: "author", Destination: EntityUser},
				{Name: "labels", Destination: EntityLabel, ToMany: true, Ordered: true},
				{Name: "assignees", Destination: EntityUser, ToMany: true, Ordered: true},
			},
		},
		&domain.Entity{
			Name:              EntityUser,
			UniquingAttribute: UniquingAttribute,
			Attributes:        []string{UniquingAttribute, "login"},
		},
		&domain.Entity{
			Name:              EntityLabel,
			UniquingAttribute: UniquingAttribute,
			Attributes:        []string{UniquingAttribute, "name", "color", "description"},
		},
	)
}
