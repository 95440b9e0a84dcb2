package concurrent

import "lintang/routefare/pkg/datastructure"

// SaveCellJobItem is one h3 cell of the proximity index and the routes crossing it.
type SaveCellJobItem struct {
	KeyStr string
	ValArr []datastructure.RouteID
}

// RoutePairJobItem indexes two routes whose bounding boxes overlap.
type RoutePairJobItem struct {
	I, J int
}

type JobI interface {
	datastructure.RouteID | SaveCellJobItem | RoutePairJobItem
}

type Job[T JobI] struct {
	ID      int
	JobItem T
}

type JobFunc[T JobI, G any] func(job T) G
