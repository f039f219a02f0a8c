package taxonomy

import (
	"fmt"

	"github.com/crimson-sun/hazardscope/internal/model"
)

// DefaultCategories returns the built-in hazard categories. A category file
// loaded with LoadCategories overrides the descriptions; remediation text
// always comes from here.
func DefaultCategories() []model.HazardCategory {
	return []model.HazardCategory{
		{ID: "1", Description: "未按规定穿戴反光安全服", Remediation: "立即停止作业，要求所有人员按规定穿戴反光安全服和安全帽，并进行安全教育培训"},
		{ID: "2", Description: "高处作业未正确使用安全带", Remediation: "立即停止高空作业，要求作业人员正确佩戴安全带，并设置水平安全绳等防护措施"},
		{ID: "3", Description: "配电箱未及时锁闭", Remediation: "立即关闭配电箱并上锁，检查配电箱防护设施，确保符合安全规范"},
		{ID: "4", Description: "未按规定配置灭火器、消防设施等", Remediation: "立即配置符合要求的灭火器和消防设施，并定期检查维护"},
		{ID: "5", Description: "现场防护栏等安全防护设施缺失、破损或设置不规范", Remediation: "立即修复或重新设置防护栏等安全防护设施，确保其完整有效"},
		{ID: "6", Description: "设备安全防护设施、装置缺失或失效", Remediation: "立即修复或更换设备安全防护设施，确保所有防护装置正常工作"},
		{ID: "7", Description: "起重吊装设备钢丝绳磨损、断丝严重，搭接长度不足", Remediation: "立即更换磨损严重的钢丝绳，确保搭接长度符合规范要求"},
		{ID: "8", Description: "汽车吊、随车吊、泵车支腿未全部伸出、未垫枕木进行作业", Remediation: "立即调整支腿使其全部伸出并垫好枕木，确保设备稳定作业"},
		{ID: "9", Description: "基坑支护措施不到位", Remediation: "立即完善基坑支护措施，确保基坑安全稳定"},
		{ID: "10", Description: "灭火器未按规定要求放置", Remediation: "立即将灭火器按规定要求放置，并定期检查维护"},
		{ID: "11", Description: "未按规定设置接地线或接地不良", Remediation: "立即设置或修复接地线，确保接地良好"},
		{ID: "12", Description: "安全警示标志标识缺失或设置不规范", Remediation: "立即补充缺失的安全警示标志，并规范设置位置"},
		{ID: "13", Description: "灭火器压力不足，灭火器、消防设施等未按规定进行检查、维护", Remediation: "立即更换压力不足的灭火器，建立定期检查维护制度"},
		{ID: "14", Description: "不符合“三级配电两级漏电保护、一机一闸一漏一箱”要求", Remediation: "立即整改配电系统，确保符合三级配电两级漏电保护要求"},
		{ID: "15", Description: "电缆外皮破损或敷设不规范", Remediation: "立即修复破损电缆，规范电缆敷设，确保用电安全"},
	}
}

// GenericRemediation is the suggestion for a category without a dedicated
// remediation text.
func GenericRemediation(categoryID string) string {
	return fmt.Sprintf("针对隐患类型%s，请立即整改相关安全隐患，确保符合安全规范要求", categoryID)
}

// DegradedSuggestion accompanies a classification that failed outright.
const DegradedSuggestion = "请检查图片质量或重新上传图片"
