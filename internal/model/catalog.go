package model

type Job struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Salary    int64  `json:"salary"`
	MaxPayout int64  `json:"maxPayout"`
	PointsPerCoin int64 `json:"pointsPerCoin"`
}

type Item struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Happiness int    `json:"happiness"`
}

var Jobs = []Job{
	{ID: "baker", Title: "Baker", Salary: 40, MaxPayout: 60, PointsPerCoin: 10},
	{ID: "farmer", Title: "Farmer", Salary: 35, MaxPayout: 80, PointsPerCoin: 8},
	{ID: "doctor", Title: "Doctor", Salary: 80, MaxPayout: 100, PointsPerCoin: 12},
	{ID: "builder", Title: "Builder", Salary: 55, MaxPayout: 90, PointsPerCoin: 10},
	{ID: "teacher", Title: "Teacher", Salary: 50, MaxPayout: 70, PointsPerCoin: 10},
	{ID: "banker", Title: "Bank Clerk", Salary: 60, MaxPayout: 50, PointsPerCoin: 15},
}

var Items = []Item{
	{ID: "ice_cream", Name: "Ice Cream", Price: 5, Happiness: 2},
	{ID: "bicycle", Name: "Bicycle", Price: 150, Happiness: 10},
	{ID: "book", Name: "Book", Price: 20, Happiness: 3},
	{ID: "pet_fish", Name: "Pet Fish", Price: 60, Happiness: 6},
	{ID: "umbrella", Name: "Umbrella", Price: 15, Happiness: 1},
	{ID: "smartphone", Name: "Smartphone", Price: 400, Happiness: 12},
}

func JobByID(id string) (Job, bool) {
	for _, j := range Jobs {
		if j.ID == id {
			return j, true
		}
	}
	return Job{}, false
}

func ItemByID(id string) (Item, bool) {
	for _, it := range Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}
