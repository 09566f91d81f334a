package continuity

// Mapping relates the elements of a population this frame to the elements it
// had on the previous frame.
type Mapping struct {
	// Changed is set on the frame the population changed.
	Changed bool
	// Src maps new element index to old element index, -1 for elements with
	// no predecessor. nil means identity.
	Src []int32
}

// BuildMapping derives the element mapping for a population that went from
// oldCount to newCount elements. Elements are identified by index. A negative
// oldCount means the population has no history yet.
func BuildMapping(oldCount, newCount int) Mapping {
	if oldCount < 0 || oldCount == newCount {
		return Mapping{}
	}
	return Mapping{Changed: true, Src: identitySrc(oldCount, newCount)}
}

func identitySrc(oldCount, newCount int) []int32 {
	src := make([]int32, newCount)
	for i := range src {
		if i < oldCount {
			src[i] = int32(i)
		} else {
			src[i] = -1
		}
	}
	return src
}

// Mapped returns the number of elements that have a predecessor.
func (m Mapping) Mapped() int {
	n := 0
	for _, s := range m.Src {
		if s >= 0 {
			n++
		}
	}
	return n
}
