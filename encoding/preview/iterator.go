package preview

import "sync"

var (
	iterLock sync.Mutex
	iterPool = make(map[int]*sync.Pool)
)

func borrowIterator(rows int) [][]float32 {
	iterLock.Lock()
	p, ok := iterPool[rows]
	iterLock.Unlock()
	if ok {
		return p.Get().([][]float32)
	}
	return make([][]float32, rows)
}

// ReturnIterator gives an iterator made by MakeIterator back to the pool.
func ReturnIterator(it [][]float32) {
	rows := len(it)
	iterLock.Lock()
	p, ok := iterPool[rows]
	if !ok {
		p = &sync.Pool{
			New: func() interface{} { return make([][]float32, rows) },
		}
		iterPool[rows] = p
	}
	iterLock.Unlock()
	for i := range it {
		it[i] = nil
	}
	p.Put(it)
}

// MakeIterator views a row-major grid as rows of cols values. The rows share memory with
// grid, which must hold at least rows*cols values.
func MakeIterator(grid []float32, rows, cols int) (retVal [][]float32) {
	retVal = borrowIterator(rows)
	for i := range retVal {
		start := i * cols
		retVal[i] = grid[start : start+cols : start+cols]
	}
	return
}
