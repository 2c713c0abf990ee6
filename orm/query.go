package orm

import "github.com/iov-one/canal"

// ConsumeIterator will read all remaining data into an array and close the
// iterator.
func ConsumeIterator(itr canal.Iterator) []canal.Model {
	defer itr.Close()

	res := []canal.Model{}
	for ; itr.Valid(); itr.Next() {
		mod := canal.Model{
			Key:   append([]byte(nil), itr.Key()...),
			Value: append([]byte(nil), itr.Value()...),
		}
		res = append(res, mod)
	}
	return res
}

// prefixRange turns a prefix into (start, end) to create an iterator
// covering exactly the keys with that prefix.
//
// In the special case of an empty prefix the range is unbounded.
func prefixRange(prefix []byte) ([]byte, []byte) {
	if len(prefix) == 0 {
		return nil, nil
	}

	// copy the prefix and update last byte
	end := make([]byte, len(prefix))
	copy(end, prefix)
	l := len(end) - 1
	end[l]++

	// wait, what if that overflowed?....
	for end[l] == 0 && l > 0 {
		l--
		end[l]++
	}

	// okay, funny guy, you gave us FFF, no end to this range...
	if l == 0 && end[0] == 0 {
		end = nil
	}
	return prefix, end
}
