package source

import (
	"github.com/CosmoTheDev/autodev-orchestrator/internal/queue"
)

// drain pops every phase due for dispatch this tick, in a fixed order
// within a repo: issues, then pulls, then merges, then PR extraction. Within
// the PR queue, fresh reviews and re-reviews share one dispatch point (Review
// handles both; ReviewIteration on the item tells it which).
func (a *Adapter) drain(repos []queue.ResolvedRepo) []RunnableTask {
	var tasks []RunnableTask

	for _, repo := range repos {
		resolvedCfg := a.loader.LoadMerged(repo.Name, a.ws.CanonicalDir(repo.Name))

		for _, item := range repo.Queues.DrainIssues(queue.IssuePending) {
			it := item
			tasks = append(tasks, RunnableTask{Kind: "analyze", Repo: repo, Issue: &it, Cfg: &resolvedCfg})
		}
		for _, item := range repo.Queues.DrainIssues(queue.IssueReady) {
			it := item
			tasks = append(tasks, RunnableTask{Kind: "implement", Repo: repo, Issue: &it, Cfg: &resolvedCfg})
		}

		for _, item := range repo.Queues.DrainPrs(queue.PrPending) {
			it := item
			tasks = append(tasks, RunnableTask{Kind: "review", Repo: repo, Pr: &it, Cfg: &resolvedCfg})
		}
		for _, item := range repo.Queues.DrainPrs(queue.PrReviewing) {
			it := item
			tasks = append(tasks, RunnableTask{Kind: "review", Repo: repo, Pr: &it, Cfg: &resolvedCfg})
		}
		for _, item := range repo.Queues.DrainPrs(queue.PrImproving) {
			it := item
			tasks = append(tasks, RunnableTask{Kind: "improve", Repo: repo, Pr: &it, Cfg: &resolvedCfg})
		}

		for _, item := range repo.Queues.DrainMerges(queue.MergePending) {
			it := item
			tasks = append(tasks, RunnableTask{Kind: "merge", Repo: repo, Merge: &it, Cfg: &resolvedCfg})
		}

		extracting := repo.Queues.DrainPrs(queue.PrExtracting)
		if resolvedCfg.Consumer.KnowledgeExtraction {
			for _, item := range extracting {
				it := item
				tasks = append(tasks, RunnableTask{Kind: "extract", Repo: repo, Pr: &it, Cfg: &resolvedCfg})
			}
		}
	}

	return tasks
}
