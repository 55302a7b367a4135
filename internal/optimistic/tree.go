package optimistic

// findTask returns a pointer into tasks for the task with the given id,
// searching subtasks depth first.
func findTask(tasks []Task, id ID) *Task {
	for i := range tasks {
		if tasks[i].ID == id {
			return &tasks[i]
		}
		found := findTask(tasks[i].Subtasks, id)
		if found != nil {
			return found
		}
	}
	return nil
}

// removeTask detaches the task with the given id, together with its
// subtasks, from wherever it sits in the tree.
func removeTask(tasks []Task, id ID) ([]Task, *Task) {
	for i := range tasks {
		if tasks[i].ID == id {
			removed := tasks[i]
			rest := make([]Task, 0, len(tasks)-1)
			rest = append(rest, tasks[:i]...)
			rest = append(rest, tasks[i+1:]...)
			return rest, &removed
		}

		subtasks, removed := removeTask(tasks[i].Subtasks, id)
		if removed != nil {
			tasks[i].Subtasks = subtasks
			return tasks, removed
		}
	}
	return tasks, nil
}

// replaceTask swaps the task with the given id for task, keeping the
// cached subtasks when task carries none.
func replaceTask(tasks []Task, id ID, task Task) bool {
	target := findTask(tasks, id)
	if target == nil {
		return false
	}
	if task.Subtasks == nil {
		task.Subtasks = target.Subtasks
	}
	*target = task
	return true
}

// subtreeStats counts the task and all of its descendants.
func subtreeStats(task *Task) (total, completed int) {
	total = 1
	if task.Completed {
		completed = 1
	}
	for i := range task.Subtasks {
		t, c := subtreeStats(&task.Subtasks[i])
		total += t
		completed += c
	}
	return total, completed
}

// completeSubtree marks the task and its descendants completed and reports
// how many of them changed.
func completeSubtree(task *Task) int {
	changed := 0
	if !task.Completed {
		task.Completed = true
		changed++
	}
	for i := range task.Subtasks {
		changed += completeSubtree(&task.Subtasks[i])
	}
	return changed
}

func moveSubtree(task *Task, collectionID int64) {
	task.CollectionID = collectionID
	for i := range task.Subtasks {
		moveSubtree(&task.Subtasks[i], collectionID)
	}
}
