package model_test

import (
	"encoding/json"
	"testing"
	"time"

	model "github.com/okian/findna/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestSources(t *testing.T) {
	convey.Convey("Given the known sources", t, func() {
		all := model.AllSources()

		convey.Convey("Then there are six, all valid", func() {
			convey.So(all, convey.ShouldHaveLength, 6)
			for _, id := range all {
				convey.So(id.Valid(), convey.ShouldBeTrue)
				convey.So(model.NewPayload(id), convey.ShouldNotBeNil)
			}
		})

		convey.Convey("Then unknown ids are rejected", func() {
			convey.So(model.SourceID("crypto").Valid(), convey.ShouldBeFalse)
			convey.So(model.NewPayload("crypto"), convey.ShouldBeNil)
		})
	})
}

func TestSortResults(t *testing.T) {
	convey.Convey("Given unordered results", t, func() {
		results := []model.SourceResult{
			{SourceID: model.SourceStockTransactions},
			{SourceID: model.SourceBankTransactions},
			{SourceID: model.SourceNetWorth},
		}
		model.SortResults(results)

		convey.So(results[0].SourceID, convey.ShouldEqual, model.SourceBankTransactions)
		convey.So(results[1].SourceID, convey.ShouldEqual, model.SourceNetWorth)
		convey.So(results[2].SourceID, convey.ShouldEqual, model.SourceStockTransactions)
	})
}

func TestPayloadDecoding(t *testing.T) {
	convey.Convey("Given a net worth document with string and numeric units", t, func() {
		doc := `{"netWorthResponse":{"assetValues":[
			{"netWorthAttribute":"ASSET_TYPE_SAVINGS_ACCOUNTS","value":{"currencyCode":"INR","units":"1000000"}},
			{"netWorthAttribute":"ASSET_TYPE_PROPERTY","value":{"units":5000000}}],
			"liabilityValues":[{"netWorthAttribute":"LIABILITY_TYPE_HOME_LOAN","value":{"units":"2000000"}}]}}`
		p := model.NewPayload(model.SourceNetWorth).(*model.NetWorthPayload)
		err := json.Unmarshal([]byte(doc), p)

		convey.So(err, convey.ShouldBeNil)
		convey.So(p.NetWorthResponse.AssetValues, convey.ShouldHaveLength, 2)
		convey.So(p.NetWorthResponse.AssetValues[0].Value.Units.IntPart(), convey.ShouldEqual, 1000000)
		convey.So(p.NetWorthResponse.AssetValues[1].Value.Units.IntPart(), convey.ShouldEqual, 5000000)
		convey.So(p.NetWorthResponse.LiabilityValues[0].Value.Units.IntPart(), convey.ShouldEqual, 2000000)
	})

	convey.Convey("Given a retirement document with a missing balance", t, func() {
		doc := `{"epfDetails":{"uanDetails":[{"establishmentDetails":[{"establishmentName":"A"},{"epfBalance":"1500.50"}]}]}}`
		p := &model.RetirementPayload{}
		err := json.Unmarshal([]byte(doc), p)

		convey.So(err, convey.ShouldBeNil)
		employers := p.Details.Accounts[0].Employers
		convey.So(employers[0].Balance, convey.ShouldBeNil)
		convey.So(employers[1].Balance.String(), convey.ShouldEqual, "1500.5")
	})
}

func TestMasking(t *testing.T) {
	convey.Convey("Given bank accounts with identifiers", t, func() {
		p := &model.BankTransactionsPayload{Accounts: []model.BankAccount{
			{AccountNumber: "123456789012"},
			{AccountNumber: "987"},
			{},
		}}
		var m model.Masker = p
		m.MaskSensitive()

		convey.So(p.Accounts[0].AccountNumber, convey.ShouldEqual, "********9012")
		convey.So(p.Accounts[1].AccountNumber, convey.ShouldEqual, "***MASKED***")
		convey.So(p.Accounts[2].AccountNumber, convey.ShouldEqual, "")
	})
}

func TestProfileClone(t *testing.T) {
	convey.Convey("Given a populated profile", t, func() {
		score := 780
		p := model.NewFinancialProfile("u1", "s1", time.Unix(0, 0))
		p.AssetBreakdown["Savings"] = 10
		p.CreditScore = &score
		p.Recommendations = append(p.Recommendations, "a")
		p.Projections[30] = model.Projection{HorizonYears: 30, Milestones: []string{"m"}}
		p.DataSourcesUsed = append(p.DataSourcesUsed, model.SourceNetWorth)

		c := p.Clone()
		c.AssetBreakdown["Savings"] = 99
		*c.CreditScore = 1
		c.Recommendations[0] = "b"
		c.Projections[30].Milestones[0] = "changed"

		convey.Convey("Then mutating the copy leaves the original intact", func() {
			convey.So(p.AssetBreakdown["Savings"], convey.ShouldEqual, 10)
			convey.So(*p.CreditScore, convey.ShouldEqual, 780)
			convey.So(p.Recommendations[0], convey.ShouldEqual, "a")
			convey.So(p.Projections[30].Milestones[0], convey.ShouldEqual, "m")
			convey.So(p.UsedSource(model.SourceNetWorth), convey.ShouldBeTrue)
			convey.So(p.Horizons(), convey.ShouldResemble, []int{30})
		})
	})
}
