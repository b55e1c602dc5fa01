package models

// Requests for prediction HTTP endpoints.

type ListPredictionsRequest struct {
	Sector string `query:"sector" json:"sector"`
	Signal string `query:"signal" json:"signal" validate:"omitempty,oneof=strong_buy buy hold sell strong_sell"`
	Sort   string `query:"sort" json:"sort" default:"symbol" validate:"omitempty,max=16"`
	Order  string `query:"order" json:"order" default:"desc" validate:"omitempty,oneof=asc desc"`
}

type PredictionDetailRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required,max=16"`
}

type RefreshRequest struct {
	Symbols []string `json:"symbols" validate:"max=500,dive,required,max=16"`
	TopN    int      `json:"top_n" validate:"gte=0,lte=9999"`
}
