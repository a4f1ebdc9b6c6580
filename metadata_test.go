package dsqlengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectMetadata_RelationshipByName(t *testing.T) {
	meta := ObjectMetadata{
		ObjectName: "Contact",
		Relationships: []Relationship{
			{Name: "Account", TargetObject: "Account", ForeignKey: "account_id", ReferencedKey: "id", Kind: RelationshipLookup},
		},
	}

	rel, ok := meta.RelationshipByName("Account")
	assert.True(t, ok)
	assert.Equal(t, "Account", rel.TargetObject)

	_, ok = meta.RelationshipByName("Ghost")
	assert.False(t, ok)
}

func TestObjectMetadata_RelationshipByNameEmpty(t *testing.T) {
	meta := ObjectMetadata{ObjectName: "Account"}
	_, ok := meta.RelationshipByName("Anything")
	assert.False(t, ok)
}
