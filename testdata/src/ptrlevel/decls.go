package ptrlevel

var x int

var p **int // want `pointer declaration p \(level 2\) can lose one indirection level \(instance 1\)`

var q *int // want `pointer declaration q \(level 1\) can lose one indirection level \(instance 2\)`

var taken *int

var fromCall *int

//ptrlevel:ignore
var skipped **int

func mk() *int { return nil }

func use() {
	_ = &taken
	fromCall = mk()
	_ = *p
	_ = q
	_ = skipped
}
