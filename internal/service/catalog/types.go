package catalog

import "time"

// 업스트림 API가 사용하는 가격 상태 값
const (
	priceStatusFree    = "Free"
	priceStatusOffSale = "Off Sale"
)

// BundleRecord 카탈로그 API에서 조회한 번들 한 건의 정규화된 표현입니다.
//
// 목록 조회와 상세 조회가 동일한 타입을 반환하지만 채워지는 필드의 범위가 다릅니다.
// 목록 응답에는 갱신 시각(Updated)이 포함되지 않으므로, 목록 경로로 수집된 레코드는
// Updated가 nil입니다.
type BundleRecord struct {
	// ID 번들의 고유 식별자
	ID int64

	// Name 번들 이름 (업스트림이 생략한 경우 빈 문자열)
	Name string

	// Description 번들 설명
	Description string

	// BundleType 번들 종류 (예: "BodyParts", "AvatarAnimations")
	BundleType string

	// Price 판매 가격 (Robux). 가격 정보가 없으면 nil입니다.
	Price *int64

	// PriceStatus 업스트림이 내려주는 가격 상태 문자열 (예: "Free", "Off Sale")
	PriceStatus string

	// Updated 번들의 마지막 갱신 시각. 상세 조회 응답에서만 채워집니다.
	Updated *time.Time
}

// IsFree 무료 번들인지 여부를 반환합니다.
func (r *BundleRecord) IsFree() bool {
	return r.PriceStatus == priceStatusFree
}

// IsOffSale 판매 중지 상태인지 여부를 반환합니다.
func (r *BundleRecord) IsOffSale() bool {
	return r.PriceStatus == priceStatusOffSale
}

// bundleItemPayload 카탈로그 상세 조회 API의 요청 본문에 들어가는 항목입니다.
type bundleItemPayload struct {
	ItemType string `json:"itemType"`
	ID       int64  `json:"id"`
}

// bundleDetailsRequest 카탈로그 상세 조회 API의 요청 본문입니다.
type bundleDetailsRequest struct {
	Items []bundleItemPayload `json:"items"`
}

// bundleEntry 카탈로그 API 응답의 data 배열 한 건입니다.
type bundleEntry struct {
	ID          int64  `json:"id"`
	ItemType    string `json:"itemType"`
	Name        string `json:"name"`
	Description string `json:"description"`
	BundleType  string `json:"bundleType"`
	Price       *int64 `json:"price"`
	PriceStatus string `json:"priceStatus"`
	Updated     string `json:"updated"`
}

// bundleListResponse 카탈로그 목록/상세 조회 API의 공통 응답 구조입니다.
type bundleListResponse struct {
	Data []bundleEntry `json:"data"`
}

// toRecord 업스트림 응답 항목을 BundleRecord로 변환합니다.
// 갱신 시각이 RFC3339 형식이 아니면 해당 필드만 버리고 나머지는 유지합니다.
func (e *bundleEntry) toRecord() *BundleRecord {
	record := &BundleRecord{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		BundleType:  e.BundleType,
		Price:       e.Price,
		PriceStatus: e.PriceStatus,
	}

	if e.Updated != "" {
		if t, err := time.Parse(time.RFC3339, e.Updated); err == nil {
			record.Updated = &t
		}
	}

	return record
}
