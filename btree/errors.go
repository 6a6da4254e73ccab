package btree

// CheckErr panics if err is non-nil. Used in the tree's btree.go and node code
// for errors that indicate a programmer error or page-format corruption rather than
// a condition a caller could meaningfully recover from (duplicate/missing key are
// handled as ordinary return values instead, never through CheckErr).
func CheckErr(err error) {
	if err != nil {
		panic(err)
	}
}
