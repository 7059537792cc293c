package service

import (
	"github.com/oyasumi-space/antenna-fanout/internal/model"
)

// ResolveVisibility 把请求的可见性按作者状态归一化。被禁言账号的
// public/public_unlisted 请求在进入扇出前强制降级，下游组件假定
// 层级已是最终值。纯函数。
func ResolveVisibility(requested model.Visibility, author *model.Account) model.Visibility {
	if author != nil && author.Silenced {
		switch requested {
		case model.VisibilityPublic:
			return model.VisibilityUnlisted
		case model.VisibilityPublicUnlisted:
			return model.VisibilityPrivate
		}
	}
	return requested
}

// ResolveSearchability 解析可检索层级：未指定时从可见性推导，
// 禁言账号封顶 private
func ResolveSearchability(requested model.Searchability, visibility model.Visibility, author *model.Account) model.Searchability {
	s := requested
	if !s.Known() {
		switch visibility {
		case model.VisibilityPublic:
			s = model.SearchabilityPublic
		case model.VisibilityPublicUnlisted:
			s = model.SearchabilityPublicUnlisted
		case model.VisibilityLimited:
			s = model.SearchabilityLimited
		case model.VisibilityDirect:
			s = model.SearchabilityDirect
		default:
			s = model.SearchabilityPrivate
		}
	}
	if author != nil && author.Silenced && s.PublicSearchable() {
		s = model.SearchabilityPrivate
	}
	return s
}
