package collaborators

import (
	"testing"

	"github.com/google/uuid"
	"go.viam.com/test"
)

func TestEmptyMinipatchesIsNeitherVariant(t *testing.T) {
	var m Minipatches
	test.That(t, m.IsEmpty(), test.ShouldBeTrue)
	test.That(t, m.IsMap(), test.ShouldBeFalse)
	test.That(t, m.IsSingle(), test.ShouldBeFalse)
}

func TestMinipatchMapVariant(t *testing.T) {
	id := uuid.New()
	m := NewMinipatchMap(map[TileID]Tile{id: "a tile"})
	test.That(t, m.IsMap(), test.ShouldBeTrue)
	test.That(t, m.IsEmpty(), test.ShouldBeFalse)

	got, ok := m.Map()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, got[id], test.ShouldEqual, "a tile")

	_, ok = m.Single()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestMinipatchSingleVariant(t *testing.T) {
	m := NewMinipatchSingle("a tile")
	test.That(t, m.IsSingle(), test.ShouldBeTrue)
	test.That(t, m.IsEmpty(), test.ShouldBeFalse)

	got, ok := m.Single()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, got, test.ShouldEqual, "a tile")

	_, ok = m.Map()
	test.That(t, ok, test.ShouldBeFalse)
}
