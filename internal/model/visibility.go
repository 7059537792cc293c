package model

// Visibility 可见性层级，决定扇出分支
type Visibility string

const (
	VisibilityPublic         Visibility = "public"
	VisibilityPublicUnlisted Visibility = "public_unlisted"
	VisibilityLogin          Visibility = "login"
	VisibilityUnlisted       Visibility = "unlisted"
	VisibilityPrivate        Visibility = "private"
	VisibilityLimited        Visibility = "limited"
	VisibilityDirect         Visibility = "direct"
)

// Known 是否为已知层级；创建流程未落地完成时可能为空
func (v Visibility) Known() bool {
	switch v {
	case VisibilityPublic, VisibilityPublicUnlisted, VisibilityLogin,
		VisibilityUnlisted, VisibilityPrivate, VisibilityLimited, VisibilityDirect:
		return true
	}
	return false
}

// PublicLike 公开类层级（触发公共广播与话题粉丝投递）
func (v Visibility) PublicLike() bool {
	return v == VisibilityPublic || v == VisibilityPublicUnlisted || v == VisibilityLogin
}

// Searchability 可检索层级，独立于可见性
type Searchability string

const (
	SearchabilityPublic         Searchability = "public"
	SearchabilityPublicUnlisted Searchability = "public_unlisted"
	SearchabilityPrivate        Searchability = "private"
	SearchabilityDirect         Searchability = "direct"
	SearchabilityLimited        Searchability = "limited"
)

func (s Searchability) Known() bool {
	switch s {
	case SearchabilityPublic, SearchabilityPublicUnlisted,
		SearchabilityPrivate, SearchabilityDirect, SearchabilityLimited:
		return true
	}
	return false
}

// PublicSearchable 是否公开可检索（话题广播资格）
func (s Searchability) PublicSearchable() bool {
	return s == SearchabilityPublic || s == SearchabilityPublicUnlisted
}
