package ringbuffer

import (
	"testing"

	"go.viam.com/test"
)

func TestPushBeforeFull(t *testing.T) {
	b := New[int](3)
	b.Push(1)
	b.Push(2)
	test.That(t, b.Len(), test.ShouldEqual, 2)
	test.That(t, b.Slice(), test.ShouldResemble, []int{1, 2})
}

func TestEvictsOldestOnceFull(t *testing.T) {
	b := New[int](3)
	b.Push(1)
	b.Push(2)
	b.Push(3)
	b.Push(4)
	test.That(t, b.Len(), test.ShouldEqual, 3)
	test.That(t, b.Slice(), test.ShouldResemble, []int{2, 3, 4})
}

func TestNeverReallocatesPastCapacity(t *testing.T) {
	b := New[int](2)
	for i := 0; i < 100; i++ {
		b.Push(i)
	}
	test.That(t, b.Len(), test.ShouldEqual, 2)
	test.That(t, b.Slice(), test.ShouldResemble, []int{98, 99})
}

func TestLastAndAt(t *testing.T) {
	b := New[int](3)
	last, ok := b.Last()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, last, test.ShouldEqual, 0)

	b.Push(10)
	b.Push(20)
	last, ok = b.Last()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, last, test.ShouldEqual, 20)
	test.That(t, b.At(0), test.ShouldEqual, 10)
}

func TestZeroCapacityPushIsNoop(t *testing.T) {
	b := New[int](0)
	b.Push(1)
	test.That(t, b.Len(), test.ShouldEqual, 0)
}
