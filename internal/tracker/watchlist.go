package tracker

// watchList holds unique names in the order they were watched.
type watchList struct {
	names []string
	index map[string]struct{}
}

func newWatchList() *watchList {
	return &watchList{index: make(map[string]struct{})}
}

func (w *watchList) contains(name string) bool {
	_, ok := w.index[name]
	return ok
}

func (w *watchList) add(name string) bool {
	if w.contains(name) {
		return false
	}
	w.index[name] = struct{}{}
	w.names = append(w.names, name)
	return true
}

func (w *watchList) remove(name string) bool {
	if !w.contains(name) {
		return false
	}
	delete(w.index, name)
	for i, n := range w.names {
		if n == name {
			w.names = append(w.names[:i], w.names[i+1:]...)
			break
		}
	}
	return true
}

func (w *watchList) len() int { return len(w.names) }

func (w *watchList) list() []string {
	return append([]string(nil), w.names...)
}

func (w *watchList) reset() {
	w.names = nil
	w.index = make(map[string]struct{})
}
